package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/internal/modules/project/dto"
	"kmbp.app/ratingbot/internal/modules/project/repository"
	"kmbp.app/ratingbot/pkg/apperror"
	"kmbp.app/ratingbot/pkg/sanitizer"
)

const (
	PageSize       = 5
	SearchLimit    = 10
	MinQueryLength = 2
)

// Searcher is an external full-text index over projects.
type Searcher interface {
	SearchProjects(ctx context.Context, query string, limit int) ([]uint, error)
}

// Indexer receives projects whose searchable fields changed.
type Indexer interface {
	IndexProject(ctx context.Context, project *entity.Project) error
}

type ProjectService interface {
	ListPage(ctx context.Context, category string, offset int) (*dto.ProjectPage, error)
	ListAll(ctx context.Context) ([]entity.Project, error)
	Top(ctx context.Context, limit int) ([]entity.Project, error)
	Get(ctx context.Context, id uint) (*dto.ProjectCard, error)
	FindByName(ctx context.Context, name string) (*entity.Project, error)
	Search(ctx context.Context, query string) ([]entity.Project, error)
	UpdateDescription(ctx context.Context, name, description string) (*entity.Project, error)
	AttachPhoto(ctx context.Context, actor entity.Actor, projectID uint, fileID string) (*entity.ProjectPhoto, error)
	DiscardPhoto(ctx context.Context, photo *entity.ProjectPhoto)
}

type projectService struct {
	repo     repository.ProjectRepository
	searcher Searcher
	indexer  Indexer
	mirror   PhotoMirror
}

// NewProjectService wires the read side. searcher, indexer and mirror are optional.
func NewProjectService(repo repository.ProjectRepository, searcher Searcher, indexer Indexer, mirror PhotoMirror) ProjectService {
	return &projectService{repo: repo, searcher: searcher, indexer: indexer, mirror: mirror}
}

// ListPage returns the batch of a category starting at offset. It keeps no
// cursor: the same (category, offset) always re-runs the live query.
func (s *projectService) ListPage(ctx context.Context, category string, offset int) (*dto.ProjectPage, error) {
	if !entity.IsValidCategory(category) {
		return nil, apperror.Invalid(fmt.Sprintf("Unknown category %q", category))
	}
	if offset < 0 {
		return nil, apperror.Invalid("Offset can't be negative")
	}

	total, err := s.repo.CountByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	projects, err := s.repo.ListByCategory(ctx, category, offset, PageSize)
	if err != nil {
		return nil, err
	}

	cards, err := s.withPhotos(ctx, projects)
	if err != nil {
		return nil, err
	}

	return &dto.ProjectPage{
		Category:   category,
		Items:      cards,
		Total:      total,
		Offset:     offset,
		PageSize:   PageSize,
		HasMore:    int64(offset+PageSize) < total,
		NextOffset: offset + PageSize,
		First:      offset == 0,
	}, nil
}

func (s *projectService) ListAll(ctx context.Context) ([]entity.Project, error) {
	return s.repo.ListAll(ctx)
}

func (s *projectService) Top(ctx context.Context, limit int) ([]entity.Project, error) {
	return s.repo.Top(ctx, limit)
}

func (s *projectService) Get(ctx context.Context, id uint) (*dto.ProjectCard, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	card := &dto.ProjectCard{Project: *project}
	photo, err := s.repo.FindPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	if photo != nil {
		card.PhotoFileID = photo.PhotoFileID
		card.ImageURL = photo.ImageURL
	}
	return card, nil
}

func (s *projectService) FindByName(ctx context.Context, name string) (*entity.Project, error) {
	project, err := s.repo.FindByName(ctx, name)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(fmt.Sprintf("Project %q not found", strings.TrimSpace(name)))
	}
	return project, err
}

// Search asks the index first and falls back to a name match in the store
// when the index is missing, failing or empty.
func (s *projectService) Search(ctx context.Context, query string) ([]entity.Project, error) {
	query = sanitizer.Line(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return nil, apperror.Invalid(fmt.Sprintf("Query must be at least %d characters", MinQueryLength))
	}

	if s.searcher != nil {
		ids, err := s.searcher.SearchProjects(ctx, query, SearchLimit)
		if err != nil {
			log.Printf("⚠️ [project] search index unavailable, using store: %v", err)
		} else if len(ids) > 0 {
			return s.inOrder(ctx, ids)
		}
	}

	return s.repo.SearchByName(ctx, query, SearchLimit)
}

func (s *projectService) UpdateDescription(ctx context.Context, name, description string) (*entity.Project, error) {
	description = sanitizer.Text(description)
	if description == "" {
		return nil, apperror.Invalid("Description can't be empty")
	}

	project, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDescription(ctx, project.ID, description); err != nil {
		return nil, err
	}
	project.Description = description

	if s.indexer != nil {
		if err := s.indexer.IndexProject(ctx, project); err != nil {
			log.Printf("⚠️ [project] failed to index project %d: %v", project.ID, err)
		}
	}
	return project, nil
}

// AttachPhoto replaces the project's photo. Mirroring to public storage is
// best effort and never blocks the chat-side update.
func (s *projectService) AttachPhoto(ctx context.Context, actor entity.Actor, projectID uint, fileID string) (*entity.ProjectPhoto, error) {
	if fileID == "" {
		return nil, apperror.Invalid("Please send a photo")
	}
	if _, err := s.repo.FindByID(ctx, projectID); err != nil {
		return nil, err
	}

	previous, err := s.repo.FindPhoto(ctx, projectID)
	if err != nil {
		return nil, err
	}

	photo := &entity.ProjectPhoto{
		ProjectID:   projectID,
		PhotoFileID: fileID,
		UpdatedBy:   actor.ID,
	}
	if s.mirror != nil {
		url, err := s.mirror.Mirror(ctx, projectID, fileID)
		if err != nil {
			log.Printf("⚠️ [project] failed to mirror photo for project %d: %v", projectID, err)
		}
		photo.ImageURL = url
	}

	if err := s.repo.SavePhoto(ctx, photo); err != nil {
		return nil, err
	}

	if previous != nil && previous.ImageURL != "" && previous.ImageURL != photo.ImageURL {
		s.DiscardPhoto(ctx, previous)
	}
	return photo, nil
}

// DiscardPhoto removes the mirrored copy of a photo that is no longer referenced.
func (s *projectService) DiscardPhoto(ctx context.Context, photo *entity.ProjectPhoto) {
	if s.mirror == nil || photo == nil || photo.ImageURL == "" {
		return
	}
	if err := s.mirror.Remove(ctx, photo.ImageURL); err != nil {
		log.Printf("⚠️ [project] failed to remove mirrored photo %s: %v", photo.ImageURL, err)
	}
}

func (s *projectService) withPhotos(ctx context.Context, projects []entity.Project) ([]dto.ProjectCard, error) {
	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	photos, err := s.repo.FindPhotos(ctx, ids)
	if err != nil {
		return nil, err
	}

	cards := make([]dto.ProjectCard, 0, len(projects))
	for _, p := range projects {
		card := dto.ProjectCard{Project: p}
		if photo, ok := photos[p.ID]; ok {
			card.PhotoFileID = photo.PhotoFileID
			card.ImageURL = photo.ImageURL
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// inOrder loads projects by id keeping the ranking of ids.
func (s *projectService) inOrder(ctx context.Context, ids []uint) ([]entity.Project, error) {
	projects, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	projectMap := make(map[uint]entity.Project, len(projects))
	for _, p := range projects {
		projectMap[p.ID] = p
	}

	ordered := make([]entity.Project, 0, len(ids))
	for _, id := range ids {
		if p, ok := projectMap[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}
