package entity

import "gorm.io/gorm"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Project{},
		&ProjectPhoto{},
		&UserLog{},
		&RatingHistory{},
		&ArchivedHistory{},
		&BannedUser{},
	)
}
