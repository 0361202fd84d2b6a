package entity

import "time"

type BannedUser struct {
	UserID           int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BannedBy         int64     `json:"banned_by"`
	BannedByUsername string    `gorm:"size:64" json:"banned_by_username"`
	Reason           string    `gorm:"type:text" json:"reason"`
	BannedAt         time.Time `gorm:"autoCreateTime;index" json:"banned_at"`
}
