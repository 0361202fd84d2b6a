package dto

type LoginInput struct {
	UserID   int64  `json:"user_id" binding:"required,min=1"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      int64  `json:"user_id"`
	SearchToken string `json:"search_token,omitempty"`
}
