package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/pkg/apperror"
)

type ProjectTotal struct {
	ProjectID uint
	Total     int
}

type UserActivity struct {
	UserID   int64
	Username string
	Reviews  int64
	Likes    int64
}

type PurgeResult struct {
	Reviews        int64
	Likes          int64
	HistoryEntries int64
	Photo          *entity.ProjectPhoto
}

// LedgerRepository owns every table a score change touches. Inside
// Transaction all calls share one database transaction.
type LedgerRepository interface {
	Transaction(ctx context.Context, fn func(repo LedgerRepository) error) error

	FindProject(ctx context.Context, id uint) (*entity.Project, error)
	FindProjectByName(ctx context.Context, name string) (*entity.Project, error)
	FindProjectsByIDs(ctx context.Context, ids []uint) ([]entity.Project, error)
	ListProjects(ctx context.Context) ([]entity.Project, error)
	CreateProject(ctx context.Context, project *entity.Project) error
	IncrementScore(ctx context.Context, projectID uint, amount int) (int, error)
	PurgeProject(ctx context.Context, project *entity.Project) (*PurgeResult, error)

	AppendHistory(ctx context.Context, entry *entity.RatingHistory) error
	ListHistory(ctx context.Context, projectID uint, limit int) ([]entity.RatingHistory, error)
	ReplayHistory(ctx context.Context, projectID uint) ([]entity.RatingHistory, error)
	CountHistory(ctx context.Context, projectID uint) (int64, error)
	SumSince(ctx context.Context, since time.Time, limit int) ([]ProjectTotal, error)

	FindUserLog(ctx context.Context, userID int64, projectID uint, action string) (*entity.UserLog, error)
	FindReview(ctx context.Context, id uint) (*entity.UserLog, error)
	CreateUserLog(ctx context.Context, log *entity.UserLog) error
	UpdateReview(ctx context.Context, id uint, text string, rating int) error
	DeleteUserLog(ctx context.Context, id uint) error
	ListReviews(ctx context.Context, projectID uint, limit int) ([]entity.UserLog, error)
	CountUserLogs(ctx context.Context, projectID uint, action string) (int64, error)
	RatingDistribution(ctx context.Context, projectID uint) (map[int]int64, error)
	ReviewCounts(ctx context.Context) (map[uint]int64, error)
	FindUsers(ctx context.Context, userID int64, username string, limit int) ([]UserActivity, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Transaction(ctx context.Context, fn func(repo LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}

func (r *ledgerRepository) FindProject(ctx context.Context, id uint) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &project, nil
}

func (r *ledgerRepository) FindProjectByName(ctx context.Context, name string) (*entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Limit(1).
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project %q: %w", name, apperror.ErrNotFound)
	}
	return &projects[0], nil
}

func (r *ledgerRepository) FindProjectsByIDs(ctx context.Context, ids []uint) ([]entity.Project, error) {
	var projects []entity.Project
	if len(ids) == 0 {
		return projects, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error
	return projects, err
}

func (r *ledgerRepository) ListProjects(ctx context.Context) ([]entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).Order("score DESC").Order("id ASC").Find(&projects).Error
	return projects, err
}

func (r *ledgerRepository) CreateProject(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// IncrementScore adds amount in place and returns the resulting score.
// The UPDATE takes the row lock, so concurrent increments never lose writes.
func (r *ledgerRepository) IncrementScore(ctx context.Context, projectID uint, amount int) (int, error) {
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Where("id = ?", projectID).
		UpdateColumn("score", gorm.Expr("score + ?", amount)).Error
	if err != nil {
		return 0, err
	}

	var score int
	row := r.db.WithContext(ctx).Model(&entity.Project{}).Select("score").Where("id = ?", projectID).Row()
	if err := row.Scan(&score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("project %d: %w", projectID, apperror.ErrNotFound)
		}
		return 0, err
	}
	return score, nil
}

// PurgeProject copies the project's history into the archive, then removes
// the project together with its logs, history and photo.
func (r *ledgerRepository) PurgeProject(ctx context.Context, project *entity.Project) (*PurgeResult, error) {
	db := r.db.WithContext(ctx)
	result := &PurgeResult{}

	var history []entity.RatingHistory
	if err := db.Where("project_id = ?", project.ID).Order("id ASC").Find(&history).Error; err != nil {
		return nil, err
	}
	if len(history) > 0 {
		archived := make([]entity.ArchivedHistory, 0, len(history))
		for _, h := range history {
			archived = append(archived, entity.ArchivedHistory{
				OriginalID:      h.ID,
				ProjectID:       h.ProjectID,
				ProjectName:     project.Name,
				AdminID:         h.AdminID,
				AdminUsername:   h.AdminUsername,
				UserID:          h.UserID,
				Username:        h.Username,
				ChangeType:      h.ChangeType,
				ScoreBefore:     h.ScoreBefore,
				ScoreAfter:      h.ScoreAfter,
				ChangeAmount:    h.ChangeAmount,
				Reason:          h.Reason,
				IsAdminAction:   h.IsAdminAction,
				RelatedReviewID: h.RelatedReviewID,
				CreatedAt:       h.CreatedAt,
			})
		}
		if err := db.CreateInBatches(&archived, 100).Error; err != nil {
			return nil, fmt.Errorf("archive history: %w", err)
		}
	}

	var photos []entity.ProjectPhoto
	if err := db.Where("project_id = ?", project.ID).Limit(1).Find(&photos).Error; err != nil {
		return nil, err
	}
	if len(photos) > 0 {
		result.Photo = &photos[0]
	}

	res := db.Where("project_id = ? AND action_type = ?", project.ID, entity.ActionReview).Delete(&entity.UserLog{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.Reviews = res.RowsAffected

	res = db.Where("project_id = ?", project.ID).Delete(&entity.UserLog{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.Likes = res.RowsAffected

	res = db.Where("project_id = ?", project.ID).Delete(&entity.RatingHistory{})
	if res.Error != nil {
		return nil, res.Error
	}
	result.HistoryEntries = res.RowsAffected

	if err := db.Where("project_id = ?", project.ID).Delete(&entity.ProjectPhoto{}).Error; err != nil {
		return nil, err
	}
	if err := db.Delete(&entity.Project{}, "id = ?", project.ID).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ledgerRepository) AppendHistory(ctx context.Context, entry *entity.RatingHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListHistory returns the newest entries first.
func (r *ledgerRepository) ListHistory(ctx context.Context, projectID uint, limit int) ([]entity.RatingHistory, error) {
	var history []entity.RatingHistory
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id DESC").
		Limit(limit).
		Find(&history).Error
	return history, err
}

// ReplayHistory returns every entry of the project in the order it was written.
func (r *ledgerRepository) ReplayHistory(ctx context.Context, projectID uint) ([]entity.RatingHistory, error) {
	var history []entity.RatingHistory
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&history).Error
	return history, err
}

func (r *ledgerRepository) CountHistory(ctx context.Context, projectID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.RatingHistory{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, err
}

// SumSince totals change_amount per project for entries created at or after since.
func (r *ledgerRepository) SumSince(ctx context.Context, since time.Time, limit int) ([]ProjectTotal, error) {
	var totals []ProjectTotal
	err := r.db.WithContext(ctx).
		Model(&entity.RatingHistory{}).
		Select("project_id, SUM(change_amount) AS total").
		Where("created_at >= ?", since).
		Group("project_id").
		Order("total DESC").
		Order("project_id ASC").
		Limit(limit).
		Scan(&totals).Error
	return totals, err
}

// FindUserLog returns nil without error when the user has no such log.
func (r *ledgerRepository) FindUserLog(ctx context.Context, userID int64, projectID uint, action string) (*entity.UserLog, error) {
	var logs []entity.UserLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND action_type = ?", userID, projectID, action).
		Limit(1).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return &logs[0], nil
}

func (r *ledgerRepository) FindReview(ctx context.Context, id uint) (*entity.UserLog, error) {
	var review entity.UserLog
	err := r.db.WithContext(ctx).
		Where("id = ? AND action_type = ?", id, entity.ActionReview).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review %d: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &review, nil
}

func (r *ledgerRepository) CreateUserLog(ctx context.Context, log *entity.UserLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *ledgerRepository) UpdateReview(ctx context.Context, id uint, text string, rating int) error {
	return r.db.WithContext(ctx).
		Model(&entity.UserLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"review_text": text,
			"rating_val":  rating,
			"updated_at":  time.Now(),
		}).Error
}

func (r *ledgerRepository) DeleteUserLog(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.UserLog{}, "id = ?", id).Error
}

func (r *ledgerRepository) ListReviews(ctx context.Context, projectID uint, limit int) ([]entity.UserLog, error) {
	var reviews []entity.UserLog
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND action_type = ?", projectID, entity.ActionReview).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (r *ledgerRepository) CountUserLogs(ctx context.Context, projectID uint, action string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.UserLog{}).
		Where("project_id = ? AND action_type = ?", projectID, action).
		Count(&count).Error
	return count, err
}

func (r *ledgerRepository) RatingDistribution(ctx context.Context, projectID uint) (map[int]int64, error) {
	var rows []struct {
		RatingVal int
		Count     int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.UserLog{}).
		Select("rating_val, COUNT(*) AS count").
		Where("project_id = ? AND action_type = ?", projectID, entity.ActionReview).
		Group("rating_val").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	dist := make(map[int]int64, len(rows))
	for _, row := range rows {
		dist[row.RatingVal] = row.Count
	}
	return dist, nil
}

func (r *ledgerRepository) ReviewCounts(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		ProjectID uint
		Count     int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.UserLog{}).
		Select("project_id, COUNT(*) AS count").
		Where("action_type = ?", entity.ActionReview).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ProjectID] = row.Count
	}
	return counts, nil
}

// FindUsers looks users up by exact id when userID is non-zero, otherwise by
// a case-insensitive username fragment.
func (r *ledgerRepository) FindUsers(ctx context.Context, userID int64, username string, limit int) ([]UserActivity, error) {
	query := r.db.WithContext(ctx).
		Model(&entity.UserLog{}).
		Select(
			"user_id, MAX(username) AS username, " +
				"SUM(CASE WHEN action_type = 'review' THEN 1 ELSE 0 END) AS reviews, " +
				"SUM(CASE WHEN action_type = 'like' THEN 1 ELSE 0 END) AS likes",
		)

	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	} else {
		query = query.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(strings.TrimPrefix(username, "@"))+"%")
	}

	var users []UserActivity
	err := query.Group("user_id").Order("user_id ASC").Limit(limit).Scan(&users).Error
	return users, err
}
