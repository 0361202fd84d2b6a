package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/pkg/apperror"
)

type BanRepository interface {
	Find(ctx context.Context, userID int64) (*entity.BannedUser, error)
	Create(ctx context.Context, ban *entity.BannedUser) error
	Delete(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]entity.BannedUser, error)
}

type banRepository struct {
	db *gorm.DB
}

func NewBanRepository(db *gorm.DB) BanRepository {
	return &banRepository{db: db}
}

// Find returns nil without error when the user is not banned.
func (r *banRepository) Find(ctx context.Context, userID int64) (*entity.BannedUser, error) {
	var bans []entity.BannedUser
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&bans).Error; err != nil {
		return nil, err
	}
	if len(bans) == 0 {
		return nil, nil
	}
	return &bans[0], nil
}

func (r *banRepository) Create(ctx context.Context, ban *entity.BannedUser) error {
	return r.db.WithContext(ctx).Create(ban).Error
}

func (r *banRepository) Delete(ctx context.Context, userID int64) error {
	res := r.db.WithContext(ctx).Delete(&entity.BannedUser{}, "user_id = ?", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ban for user %d: %w", userID, apperror.ErrNotFound)
	}
	return nil
}

func (r *banRepository) List(ctx context.Context) ([]entity.BannedUser, error) {
	var bans []entity.BannedUser
	err := r.db.WithContext(ctx).Order("banned_at DESC").Order("user_id ASC").Find(&bans).Error
	return bans, err
}
