package entity

import "time"

const (
	ActionReview = "review"
	ActionLike   = "like"
)

// UserLog holds both reviews and likes. A user has at most one of each per project.
type UserLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_user_project,priority:1" json:"user_id"`
	ProjectID  uint      `gorm:"not null;uniqueIndex:idx_user_project,priority:2;index" json:"project_id"`
	ActionType string    `gorm:"size:10;not null;uniqueIndex:idx_user_project,priority:3" json:"action_type"`
	RatingVal  int       `json:"rating_val"`
	ReviewText string    `gorm:"type:text" json:"review_text"`
	Username   string    `gorm:"size:64" json:"username"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ChangeType string

const (
	ChangeCreate       ChangeType = "create"
	ChangeDelete       ChangeType = "delete"
	ChangeAdmin        ChangeType = "admin_change"
	ChangeUserReview   ChangeType = "user_review"
	ChangeLike         ChangeType = "like"
	ChangeDeleteReview ChangeType = "delete_review"
)

// IsAdminAction reports whether changes of this type are made by admins.
func (c ChangeType) IsAdminAction() bool {
	switch c {
	case ChangeCreate, ChangeDelete, ChangeAdmin, ChangeDeleteReview:
		return true
	}
	return false
}

// RatingHistory is one append-only score change. Exactly one of AdminID and UserID is set.
type RatingHistory struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ProjectID       uint       `gorm:"not null;index" json:"project_id"`
	AdminID         *int64     `gorm:"index" json:"admin_id,omitempty"`
	AdminUsername   string     `gorm:"size:64" json:"admin_username,omitempty"`
	UserID          *int64     `gorm:"index" json:"user_id,omitempty"`
	Username        string     `gorm:"size:64" json:"username,omitempty"`
	ChangeType      ChangeType `gorm:"size:20;not null" json:"change_type"`
	ScoreBefore     int        `json:"score_before"`
	ScoreAfter      int        `json:"score_after"`
	ChangeAmount    int        `json:"change_amount"`
	Reason          string     `gorm:"type:text" json:"reason"`
	IsAdminAction   bool       `gorm:"not null;default:false" json:"is_admin_action"`
	RelatedReviewID *uint      `json:"related_review_id,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}

func (RatingHistory) TableName() string {
	return "rating_history"
}

// ArchivedHistory keeps the audit trail of projects that were deleted.
type ArchivedHistory struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OriginalID      uint       `gorm:"index" json:"original_id"`
	ProjectID       uint       `gorm:"index" json:"project_id"`
	ProjectName     string     `gorm:"size:100" json:"project_name"`
	AdminID         *int64     `json:"admin_id,omitempty"`
	AdminUsername   string     `gorm:"size:64" json:"admin_username,omitempty"`
	UserID          *int64     `json:"user_id,omitempty"`
	Username        string     `gorm:"size:64" json:"username,omitempty"`
	ChangeType      ChangeType `gorm:"size:20" json:"change_type"`
	ScoreBefore     int        `json:"score_before"`
	ScoreAfter      int        `json:"score_after"`
	ChangeAmount    int        `json:"change_amount"`
	Reason          string     `gorm:"type:text" json:"reason"`
	IsAdminAction   bool       `json:"is_admin_action"`
	RelatedReviewID *uint      `json:"related_review_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ArchivedAt      time.Time  `gorm:"autoCreateTime" json:"archived_at"`
}

func (ArchivedHistory) TableName() string {
	return "rating_history_archive"
}
