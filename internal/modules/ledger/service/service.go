package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/internal/modules/ledger/dto"
	"kmbp.app/ratingbot/internal/modules/ledger/repository"
	"kmbp.app/ratingbot/pkg/apperror"
)

const (
	WeeklyWindow = 7 * 24 * time.Hour
	WeeklyLimit  = 10
)

// ProjectIndexer keeps an external search index in step with committed changes.
type ProjectIndexer interface {
	IndexProject(ctx context.Context, project *entity.Project) error
	RemoveProject(ctx context.Context, projectID uint) error
}

// LedgerService is the only writer of project scores. Every mutation runs
// the score update and its history entry in one transaction.
type LedgerService interface {
	ApplyChange(ctx context.Context, change dto.Change) (*dto.ChangeResult, error)
	CreateProject(ctx context.Context, actor entity.Actor, input dto.CreateProjectInput) (*entity.Project, error)
	DeleteProject(ctx context.Context, actor entity.Actor, projectID uint) (*dto.DeleteResult, error)
	AdminChange(ctx context.Context, actor entity.Actor, projectID uint, amount int, reason string) (*dto.ChangeResult, error)
	SubmitReview(ctx context.Context, actor entity.Actor, projectID uint, text string, rating int) (*dto.ReviewResult, error)
	DeleteReview(ctx context.Context, actor entity.Actor, reviewID uint) (*dto.ReviewDeletion, error)
	Like(ctx context.Context, actor entity.Actor, projectID uint) (*dto.ChangeResult, error)

	UserReview(ctx context.Context, userID int64, projectID uint) (*entity.UserLog, error)
	Reviews(ctx context.Context, projectID uint, limit int) ([]entity.UserLog, error)
	History(ctx context.Context, projectID uint, limit int) ([]entity.RatingHistory, error)
	WeeklyTop(ctx context.Context) ([]dto.WeeklyEntry, error)
	Stats(ctx context.Context, projectID uint) (*dto.ProjectStats, error)
	Overview(ctx context.Context) (*dto.Overview, error)
	Verify(ctx context.Context, projectID uint) (*dto.Verification, error)
	FindUsers(ctx context.Context, query string) ([]dto.UserActivity, error)
}

type ledgerService struct {
	repo    repository.LedgerRepository
	indexer ProjectIndexer
	now     func() time.Time
}

// NewLedgerService wires the ledger. indexer may be nil when search is disabled.
func NewLedgerService(repo repository.LedgerRepository, indexer ProjectIndexer) LedgerService {
	return &ledgerService{repo: repo, indexer: indexer, now: time.Now}
}

func (s *ledgerService) ApplyChange(ctx context.Context, change dto.Change) (*dto.ChangeResult, error) {
	var result *dto.ChangeResult
	err := s.repo.Transaction(ctx, func(repo repository.LedgerRepository) error {
		var err error
		result, err = applyChange(ctx, repo, change)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.reindex(change.ProjectID)
	return result, nil
}

// applyChange increments the score in place, derives the previous score from
// the post-update value and appends the matching history row.
func applyChange(ctx context.Context, repo repository.LedgerRepository, change dto.Change) (*dto.ChangeResult, error) {
	project, err := repo.FindProject(ctx, change.ProjectID)
	if err != nil {
		return nil, err
	}

	after, err := repo.IncrementScore(ctx, change.ProjectID, change.Amount)
	if err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}
	before := after - change.Amount

	entry := &entity.RatingHistory{
		ProjectID:       change.ProjectID,
		ChangeType:      change.Type,
		ScoreBefore:     before,
		ScoreAfter:      after,
		ChangeAmount:    change.Amount,
		Reason:          change.Reason,
		IsAdminAction:   change.Type.IsAdminAction(),
		RelatedReviewID: change.RelatedReviewID,
	}
	actorID := change.Actor.ID
	if entry.IsAdminAction {
		entry.AdminID = &actorID
		entry.AdminUsername = change.Actor.Username
	} else {
		entry.UserID = &actorID
		entry.Username = change.Actor.Username
	}

	if err := repo.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	return &dto.ChangeResult{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Category:    project.Category,
		Type:        change.Type,
		Before:      before,
		After:       after,
		Amount:      change.Amount,
		Reason:      change.Reason,
	}, nil
}

func (s *ledgerService) CreateProject(ctx context.Context, actor entity.Actor, input dto.CreateProjectInput) (*entity.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.Invalid("Project name is required")
	}
	if !entity.IsValidCategory(input.Category) {
		return nil, apperror.Invalid(fmt.Sprintf("Unknown category %q", input.Category))
	}

	project := &entity.Project{
		Category:    input.Category,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}

	err := s.repo.Transaction(ctx, func(repo repository.LedgerRepository) error {
		if _, err := repo.FindProjectByName(ctx, name); err == nil {
			return apperror.Conflict(fmt.Sprintf("Project %q already exists", name))
		} else if !isNotFound(err) {
			return err
		}

		if err := repo.CreateProject(ctx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		_, err := applyChange(ctx, repo, dto.Change{
			ProjectID: project.ID,
			Amount:    0,
			Reason:    "Project created",
			Actor:     actor,
			Type:      entity.ChangeCreate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.reindex(project.ID)
	return project, nil
}

func (s *ledgerService) DeleteProject(ctx context.Context, actor entity.Actor, projectID uint) (*dto.DeleteResult, error) {
	var result *dto.DeleteResult
	err := s.repo.Transaction(ctx, func(repo repository.LedgerRepository) error {
		project, err := repo.FindProject(ctx, projectID)
		if err != nil {
			return err
		}

		change, err := applyChange(ctx, repo, dto.Change{
			ProjectID: projectID,
			Amount:    -project.Score,
			Reason:    "Project deleted",
			Actor:     actor,
			Type:      entity.ChangeDelete,
		})
		if err != nil {
			return err
		}

		purged, err := repo.PurgeProject(ctx, project)
		if err != nil {
			return fmt.Errorf("purge project: %w", err)
		}

		result = &dto.DeleteResult{
			ChangeResult:   *change,
			Reviews:        purged.Reviews,
			Likes:          purged.Likes,
			HistoryEntries: purged.HistoryEntries,
			Photo:          purged.Photo,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.indexer != nil {
		go func() {
			if err := s.indexer.RemoveProject(context.Background(), projectID); err != nil {
				log.Printf("⚠️ [ledger] failed to remove project %d from index: %v", projectID, err)
			}
		}()
	}
	return result, nil
}

func (s *ledgerService) AdminChange(ctx context.Context, actor entity.Actor, projectID uint, amount int, reason string) (*dto.ChangeResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Invalid("Reason can't be empty")
	}

	return s.ApplyChange(ctx, dto.Change{
		ProjectID: projectID,
		Amount:    amount,
		Reason:    reason,
		Actor:     actor,
		Type:      entity.ChangeAdmin,
	})
}

// SubmitReview stores a new review or replaces the user's existing one.
// A replacement only applies the difference between the two rating deltas.
func (s *ledgerService) SubmitReview(ctx context.Context, actor entity.Actor, projectID uint, text string, rating int) (*dto.ReviewResult, error) {
	newDelta, err := RatingDelta(rating)
	if err != nil {
		return nil, err
	}

	var result *dto.ReviewResult
	err = s.repo.Transaction(ctx, func(repo repository.LedgerRepository) error {
		if _, err := repo.FindProject(ctx, projectID); err != nil {
			return err
		}

		existing, err := repo.FindUserLog(ctx, actor.ID, projectID, entity.ActionReview)
		if err != nil {
			return err
		}

		res := &dto.ReviewResult{Rating: rating}
		var (
			amount int
			reason string
		)
		if existing == nil {
			review := &entity.UserLog{
				UserID:     actor.ID,
				ProjectID:  projectID,
				ActionType: entity.ActionReview,
				RatingVal:  rating,
				ReviewText: text,
				Username:   actor.Username,
			}
			if err := repo.CreateUserLog(ctx, review); err != nil {
				return fmt.Errorf("create review: %w", err)
			}
			res.ReviewID = review.ID
			amount = newDelta
			reason = fmt.Sprintf("New review: %d/5", rating)
		} else {
			amount, err = ReviewDelta(existing.RatingVal, rating)
			if err != nil {
				return err
			}
			if err := repo.UpdateReview(ctx, existing.ID, text, rating); err != nil {
				return fmt.Errorf("update review: %w", err)
			}
			res.ReviewID = existing.ID
			res.Replaced = true
			res.OldRating = existing.RatingVal
			reason = fmt.Sprintf("Review changed: %d/5 → %d/5", existing.RatingVal, rating)
		}

		reviewID := res.ReviewID
		change, err := applyChange(ctx, repo, dto.Change{
			ProjectID:       projectID,
			Amount:          amount,
			Reason:          reason,
			Actor:           actor,
			Type:            entity.ChangeUserReview,
			RelatedReviewID: &reviewID,
		})
		if err != nil {
			return err
		}

		res.ChangeResult = *change
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reindex(projectID)
	return result, nil
}

func (s *ledgerService) DeleteReview(ctx context.Context, actor entity.Actor, reviewID uint) (*dto.ReviewDeletion, error) {
	var result *dto.ReviewDeletion
	err := s.repo.Transaction(ctx, func(repo repository.LedgerRepository) error {
		review, err := repo.FindReview(ctx, reviewID)
		if err != nil {
			return err
		}

		delta, err := RatingDelta(review.RatingVal)
		if err != nil {
			return err
		}

		id := review.ID
		change, err := applyChange(ctx, repo, dto.Change{
			ProjectID:       review.ProjectID,
			Amount:          -delta,
			Reason:          fmt.Sprintf("Review #%d deleted (rating: %d/5)", review.ID, review.RatingVal),
			Actor:           actor,
			Type:            entity.ChangeDeleteReview,
			RelatedReviewID: &id,
		})
		if err != nil {
			return err
		}

		if err := repo.DeleteUserLog(ctx, review.ID); err != nil {
			return fmt.Errorf("delete review: %w", err)
		}

		result = &dto.ReviewDeletion{ChangeResult: *change, Review: *review}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reindex(result.ProjectID)
	return result, nil
}

func (s *ledgerService) Like(ctx context.Context, actor entity.Actor, projectID uint) (*dto.ChangeResult, error) {
	var result *dto.ChangeResult
	err := s.repo.Transaction(ctx, func(repo repository.LedgerRepository) error {
		if _, err := repo.FindProject(ctx, projectID); err != nil {
			return err
		}

		existing, err := repo.FindUserLog(ctx, actor.ID, projectID, entity.ActionLike)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.Conflict("You already supported this project!")
		}

		if err := repo.CreateUserLog(ctx, &entity.UserLog{
			UserID:     actor.ID,
			ProjectID:  projectID,
			ActionType: entity.ActionLike,
			Username:   actor.Username,
		}); err != nil {
			return fmt.Errorf("create like: %w", err)
		}

		result, err = applyChange(ctx, repo, dto.Change{
			ProjectID: projectID,
			Amount:    1,
			Reason:    "Like from user",
			Actor:     actor,
			Type:      entity.ChangeLike,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.reindex(projectID)
	return result, nil
}

func (s *ledgerService) UserReview(ctx context.Context, userID int64, projectID uint) (*entity.UserLog, error) {
	return s.repo.FindUserLog(ctx, userID, projectID, entity.ActionReview)
}

func (s *ledgerService) Reviews(ctx context.Context, projectID uint, limit int) ([]entity.UserLog, error) {
	return s.repo.ListReviews(ctx, projectID, limit)
}

func (s *ledgerService) History(ctx context.Context, projectID uint, limit int) ([]entity.RatingHistory, error) {
	return s.repo.ListHistory(ctx, projectID, limit)
}

// WeeklyTop sums the trailing week of history per project, biggest gain first.
func (s *ledgerService) WeeklyTop(ctx context.Context) ([]dto.WeeklyEntry, error) {
	totals, err := s.repo.SumSince(ctx, s.now().Add(-WeeklyWindow), WeeklyLimit)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return []dto.WeeklyEntry{}, nil
	}

	ids := make([]uint, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.ProjectID)
	}

	projects, err := s.repo.FindProjectsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	projectMap := make(map[uint]entity.Project, len(projects))
	for _, p := range projects {
		projectMap[p.ID] = p
	}

	entries := make([]dto.WeeklyEntry, 0, len(totals))
	for _, t := range totals {
		p, ok := projectMap[t.ProjectID]
		if !ok {
			continue
		}
		entries = append(entries, dto.WeeklyEntry{
			ProjectID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Total:     t.Total,
		})
	}
	return entries, nil
}

func (s *ledgerService) Stats(ctx context.Context, projectID uint) (*dto.ProjectStats, error) {
	project, err := s.repo.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	stats := &dto.ProjectStats{Project: *project}
	if stats.Reviews, err = s.repo.CountUserLogs(ctx, projectID, entity.ActionReview); err != nil {
		return nil, err
	}
	if stats.Likes, err = s.repo.CountUserLogs(ctx, projectID, entity.ActionLike); err != nil {
		return nil, err
	}
	if stats.HistoryEntries, err = s.repo.CountHistory(ctx, projectID); err != nil {
		return nil, err
	}
	if stats.Distribution, err = s.repo.RatingDistribution(ctx, projectID); err != nil {
		return nil, err
	}

	var sum, count int64
	for rating, n := range stats.Distribution {
		sum += int64(rating) * n
		count += n
	}
	if count > 0 {
		stats.AverageRating = float64(sum) / float64(count)
	}
	return stats, nil
}

func (s *ledgerService) Overview(ctx context.Context) (*dto.Overview, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.ReviewCounts(ctx)
	if err != nil {
		return nil, err
	}

	overview := &dto.Overview{Projects: make([]dto.ProjectSummary, 0, len(projects))}
	for _, p := range projects {
		overview.Projects = append(overview.Projects, dto.ProjectSummary{Project: p, Reviews: counts[p.ID]})
		overview.TotalReviews += counts[p.ID]
		overview.TotalScore += p.Score
	}
	return overview, nil
}

// Verify replays the project's history and checks it against the stored score.
func (s *ledgerService) Verify(ctx context.Context, projectID uint) (*dto.Verification, error) {
	project, err := s.repo.FindProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ReplayHistory(ctx, projectID)
	if err != nil {
		return nil, err
	}

	v := &dto.Verification{ProjectID: projectID, Score: project.Score, Entries: len(history), Consistent: true}
	prevAfter := 0
	for i, h := range history {
		v.HistorySum += h.ChangeAmount
		chained := i == 0 || h.ScoreBefore == prevAfter
		if v.BrokenAt == nil && (h.ScoreAfter != h.ScoreBefore+h.ChangeAmount || !chained) {
			id := h.ID
			v.BrokenAt = &id
			v.Consistent = false
		}
		prevAfter = h.ScoreAfter
	}
	if v.HistorySum != project.Score {
		v.Consistent = false
	}
	return v, nil
}

// FindUsers accepts a numeric user id or a username fragment.
func (s *ledgerService) FindUsers(ctx context.Context, query string) ([]dto.UserActivity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Invalid("Give a user id or a username")
	}

	userID, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		userID = 0
	}

	rows, err := s.repo.FindUsers(ctx, userID, query, 20)
	if err != nil {
		return nil, err
	}

	users := make([]dto.UserActivity, 0, len(rows))
	for _, r := range rows {
		users = append(users, dto.UserActivity{
			UserID:   r.UserID,
			Username: r.Username,
			Reviews:  r.Reviews,
			Likes:    r.Likes,
		})
	}
	return users, nil
}

func (s *ledgerService) reindex(projectID uint) {
	if s.indexer == nil {
		return
	}
	go func() {
		ctx := context.Background()
		project, err := s.repo.FindProject(ctx, projectID)
		if err != nil {
			log.Printf("⚠️ [ledger] reindex lookup for project %d failed: %v", projectID, err)
			return
		}
		if err := s.indexer.IndexProject(ctx, project); err != nil {
			log.Printf("⚠️ [ledger] failed to index project %d: %v", projectID, err)
		}
	}()
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
