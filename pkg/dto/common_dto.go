package dto

type PaginationMeta struct {
	Offset  int   `json:"offset"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

type ListResponse[T any] struct {
	Data []T             `json:"data"`
	Meta *PaginationMeta `json:"meta,omitempty"`
}

type IDParam struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

type UserIDParam struct {
	UserID int64 `uri:"user_id" binding:"required"`
}

type LimitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
