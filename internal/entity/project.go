package entity

import "time"

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Category    string    `gorm:"size:50;not null;index" json:"category"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Score       int       `gorm:"not null;default:0;index" json:"score"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProjectPhoto struct {
	ProjectID   uint      `gorm:"primaryKey;autoIncrement:false" json:"project_id"`
	PhotoFileID string    `gorm:"size:255;not null" json:"photo_file_id"`
	ImageURL    string    `gorm:"size:512" json:"image_url"`
	UpdatedBy   int64     `json:"updated_by"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
