package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/pkg/apperror"
)

type ProjectRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.Project, error)
	FindByName(ctx context.Context, name string) (*entity.Project, error)
	FindByIDs(ctx context.Context, ids []uint) ([]entity.Project, error)
	ListByCategory(ctx context.Context, category string, offset, limit int) ([]entity.Project, error)
	CountByCategory(ctx context.Context, category string) (int64, error)
	ListAll(ctx context.Context) ([]entity.Project, error)
	Top(ctx context.Context, limit int) ([]entity.Project, error)
	SearchByName(ctx context.Context, query string, limit int) ([]entity.Project, error)
	UpdateDescription(ctx context.Context, id uint, description string) error

	FindPhoto(ctx context.Context, projectID uint) (*entity.ProjectPhoto, error)
	FindPhotos(ctx context.Context, projectIDs []uint) (map[uint]entity.ProjectPhoto, error)
	SavePhoto(ctx context.Context, photo *entity.ProjectPhoto) error
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) FindByID(ctx context.Context, id uint) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return &project, nil
}

// FindByName prefers an exact case-insensitive match and falls back to the
// oldest project whose name contains the input.
func (r *projectRepository) FindByName(ctx context.Context, name string) (*entity.Project, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, fmt.Errorf("empty project name: %w", apperror.ErrNotFound)
	}

	var projects []entity.Project
	if err := r.db.WithContext(ctx).Where("LOWER(name) = ?", needle).Limit(1).Find(&projects).Error; err != nil {
		return nil, err
	}
	if len(projects) > 0 {
		return &projects[0], nil
	}

	if err := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(needle)+"%").
		Order("id ASC").
		Limit(1).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project %q: %w", name, apperror.ErrNotFound)
	}
	return &projects[0], nil
}

func (r *projectRepository) FindByIDs(ctx context.Context, ids []uint) ([]entity.Project, error) {
	var projects []entity.Project
	if len(ids) == 0 {
		return projects, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error
	return projects, err
}

// ListByCategory returns one page ordered by score, ties broken by id.
func (r *projectRepository) ListByCategory(ctx context.Context, category string, offset, limit int) ([]entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("score DESC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&projects).Error
	return projects, err
}

func (r *projectRepository) CountByCategory(ctx context.Context, category string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Project{}).Where("category = ?", category).Count(&count).Error
	return count, err
}

func (r *projectRepository) ListAll(ctx context.Context) ([]entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).Order("score DESC").Order("id ASC").Find(&projects).Error
	return projects, err
}

func (r *projectRepository) Top(ctx context.Context, limit int) ([]entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).Order("score DESC").Order("id ASC").Limit(limit).Find(&projects).Error
	return projects, err
}

func (r *projectRepository) SearchByName(ctx context.Context, query string, limit int) ([]entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(query))+"%").
		Order("score DESC").
		Order("id ASC").
		Limit(limit).
		Find(&projects).Error
	return projects, err
}

func (r *projectRepository) UpdateDescription(ctx context.Context, id uint, description string) error {
	res := r.db.WithContext(ctx).Model(&entity.Project{}).Where("id = ?", id).Update("description", description)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %d: %w", id, apperror.ErrNotFound)
	}
	return nil
}

// FindPhoto returns nil without error when the project has no photo.
func (r *projectRepository) FindPhoto(ctx context.Context, projectID uint) (*entity.ProjectPhoto, error) {
	var photos []entity.ProjectPhoto
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Limit(1).Find(&photos).Error; err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, nil
	}
	return &photos[0], nil
}

func (r *projectRepository) FindPhotos(ctx context.Context, projectIDs []uint) (map[uint]entity.ProjectPhoto, error) {
	result := make(map[uint]entity.ProjectPhoto, len(projectIDs))
	if len(projectIDs) == 0 {
		return result, nil
	}

	var photos []entity.ProjectPhoto
	if err := r.db.WithContext(ctx).Where("project_id IN ?", projectIDs).Find(&photos).Error; err != nil {
		return nil, err
	}
	for _, p := range photos {
		result[p.ProjectID] = p
	}
	return result, nil
}

// SavePhoto upserts the single photo row of a project.
func (r *projectRepository) SavePhoto(ctx context.Context, photo *entity.ProjectPhoto) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"photo_file_id", "image_url", "updated_by", "updated_at"}),
	}).Create(photo).Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
