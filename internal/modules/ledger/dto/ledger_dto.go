package dto

import "kmbp.app/ratingbot/internal/entity"

// Change is a single score mutation routed through the ledger.
type Change struct {
	ProjectID       uint
	Amount          int
	Reason          string
	Actor           entity.Actor
	Type            entity.ChangeType
	RelatedReviewID *uint
}

type ChangeResult struct {
	ProjectID   uint              `json:"project_id"`
	ProjectName string            `json:"project_name"`
	Category    string            `json:"category"`
	Type        entity.ChangeType `json:"change_type"`
	Before      int               `json:"score_before"`
	After       int               `json:"score_after"`
	Amount      int               `json:"change_amount"`
	Reason      string            `json:"reason"`
}

type CreateProjectInput struct {
	Category    string
	Name        string
	Description string
}

type ReviewResult struct {
	ChangeResult
	ReviewID  uint `json:"review_id"`
	Rating    int  `json:"rating"`
	Replaced  bool `json:"replaced"`
	OldRating int  `json:"old_rating,omitempty"`
}

type ReviewDeletion struct {
	ChangeResult
	Review entity.UserLog `json:"review"`
}

type DeleteResult struct {
	ChangeResult
	Reviews        int64                `json:"reviews"`
	Likes          int64                `json:"likes"`
	HistoryEntries int64                `json:"history_entries"`
	Photo          *entity.ProjectPhoto `json:"-"`
}

type WeeklyEntry struct {
	ProjectID uint   `json:"project_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Total     int    `json:"total"`
}

type ProjectStats struct {
	Project        entity.Project `json:"project"`
	Reviews        int64          `json:"reviews"`
	Likes          int64          `json:"likes"`
	HistoryEntries int64          `json:"history_entries"`
	AverageRating  float64        `json:"average_rating"`
	Distribution   map[int]int64  `json:"distribution"`
}

type ProjectSummary struct {
	entity.Project
	Reviews int64 `json:"reviews"`
}

type Overview struct {
	Projects     []ProjectSummary `json:"projects"`
	TotalReviews int64            `json:"total_reviews"`
	TotalScore   int              `json:"total_score"`
}

// Verification is the outcome of replaying a project's history.
type Verification struct {
	ProjectID  uint  `json:"project_id"`
	Score      int   `json:"score"`
	HistorySum int   `json:"history_sum"`
	Entries    int   `json:"entries"`
	Consistent bool  `json:"consistent"`
	BrokenAt   *uint `json:"broken_at,omitempty"`
}

type UserActivity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Reviews  int64  `json:"reviews"`
	Likes    int64  `json:"likes"`
}
