package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/internal/modules/ledger/dto"
	"kmbp.app/ratingbot/internal/modules/ledger/repository"
	"kmbp.app/ratingbot/internal/testutil"
	"kmbp.app/ratingbot/pkg/apperror"
)

var (
	admin = entity.Actor{ID: 1, Username: "boss"}
	alice = entity.Actor{ID: 100, Username: "alice"}
	bob   = entity.Actor{ID: 200, Username: "bob"}
)

func setupLedger(t *testing.T) (*gorm.DB, *ledgerService) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewLedgerService(repository.NewLedgerRepository(db), nil).(*ledgerService)
	return db, svc
}

func mustCreate(t *testing.T, svc LedgerService, name string) *entity.Project {
	t.Helper()
	p, err := svc.CreateProject(context.Background(), admin, dtoInput("kmbp_channels", name))
	if err != nil {
		t.Fatalf("CreateProject(%q) failed: %v", name, err)
	}
	return p
}

func currentScore(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p entity.Project
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("load project %d: %v", id, err)
	}
	return p.Score
}

func historyOf(t *testing.T, db *gorm.DB, id uint) []entity.RatingHistory {
	t.Helper()
	var rows []entity.RatingHistory
	if err := db.Where("project_id = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	return rows
}

func TestRatingDelta(t *testing.T) {
	want := map[int]int{1: -5, 2: -2, 3: 0, 4: 2, 5: 5}
	for rating, delta := range want {
		got, err := RatingDelta(rating)
		if err != nil || got != delta {
			t.Errorf("RatingDelta(%d) = %d, %v; want %d", rating, got, err, delta)
		}
	}
	for _, bad := range []int{0, 6, -1} {
		if _, err := RatingDelta(bad); !errors.Is(err, apperror.ErrInvalidInput) {
			t.Errorf("RatingDelta(%d) should be invalid, got %v", bad, err)
		}
	}

	if d, _ := ReviewDelta(5, 1); d != -10 {
		t.Errorf("ReviewDelta(5,1) = %d, want -10", d)
	}
	if d, _ := ReviewDelta(2, 4); d != 4 {
		t.Errorf("ReviewDelta(2,4) = %d, want 4", d)
	}
}

func TestCreateProjectWritesCreateEntry(t *testing.T) {
	db, svc := setupLedger(t)
	p := mustCreate(t, svc, "Alpha")

	if p.Score != 0 {
		t.Fatalf("new project score = %d", p.Score)
	}
	rows := historyOf(t, db, p.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(rows))
	}
	h := rows[0]
	if h.ChangeType != entity.ChangeCreate || h.ScoreBefore != 0 || h.ScoreAfter != 0 || h.ChangeAmount != 0 {
		t.Fatalf("unexpected create entry %+v", h)
	}
	if !h.IsAdminAction || h.AdminID == nil || *h.AdminID != admin.ID || h.UserID != nil {
		t.Fatalf("create entry should be attributed to the admin: %+v", h)
	}
}

func TestCreateProjectRejectsDuplicatesAndBadCategory(t *testing.T) {
	_, svc := setupLedger(t)
	mustCreate(t, svc, "Alpha")

	_, err := svc.CreateProject(context.Background(), admin, dtoInput("kmbp_channels", "  alpha "))
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected conflict for case-insensitive duplicate, got %v", err)
	}

	_, err = svc.CreateProject(context.Background(), admin, dtoInput("nope", "Beta"))
	if !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid category, got %v", err)
	}
}

func TestFirstReviewAppliesFullDelta(t *testing.T) {
	db, svc := setupLedger(t)
	p := mustCreate(t, svc, "Alpha")

	res, err := svc.SubmitReview(context.Background(), alice, p.ID, "great", 5)
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if res.Replaced || res.Before != 0 || res.After != 5 || res.Amount != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := currentScore(t, db, p.ID); got != 5 {
		t.Fatalf("score = %d, want 5", got)
	}

	rows := historyOf(t, db, p.ID)
	last := rows[len(rows)-1]
	if last.ChangeType != entity.ChangeUserReview || last.ScoreBefore != 0 || last.ScoreAfter != 5 || last.ChangeAmount != 5 {
		t.Fatalf("unexpected review entry %+v", last)
	}
	if last.Reason != "New review: 5/5" {
		t.Fatalf("reason = %q", last.Reason)
	}
	if last.IsAdminAction || last.UserID == nil || *last.UserID != alice.ID {
		t.Fatalf("review entry should be attributed to the user: %+v", last)
	}
	if last.RelatedReviewID == nil || *last.RelatedReviewID != res.ReviewID {
		t.Fatalf("related review id not recorded: %+v", last)
	}
}

func TestReplacingReviewAppliesDifferential(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")

	if _, err := svc.SubmitReview(ctx, alice, p.ID, "great", 5); err != nil {
		t.Fatalf("first review: %v", err)
	}
	res, err := svc.SubmitReview(ctx, alice, p.ID, "changed my mind", 1)
	if err != nil {
		t.Fatalf("replacement review: %v", err)
	}

	if !res.Replaced || res.OldRating != 5 || res.Amount != -10 {
		t.Fatalf("unexpected replacement result %+v", res)
	}
	if got := currentScore(t, db, p.ID); got != -5 {
		t.Fatalf("score = %d, want -5", got)
	}

	var reviews []entity.UserLog
	db.Where("user_id = ? AND project_id = ? AND action_type = ?", alice.ID, p.ID, entity.ActionReview).Find(&reviews)
	if len(reviews) != 1 {
		t.Fatalf("expected exactly one review row, got %d", len(reviews))
	}
	if reviews[0].RatingVal != 1 || reviews[0].ReviewText != "changed my mind" {
		t.Fatalf("review not updated in place: %+v", reviews[0])
	}

	rows := historyOf(t, db, p.ID)
	if last := rows[len(rows)-1]; last.Reason != "Review changed: 5/5 → 1/5" {
		t.Fatalf("reason = %q", last.Reason)
	}
}

func TestSubmitReviewRejectsInvalidRating(t *testing.T) {
	db, svc := setupLedger(t)
	p := mustCreate(t, svc, "Alpha")

	if _, err := svc.SubmitReview(context.Background(), alice, p.ID, "x", 7); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if n := len(historyOf(t, db, p.ID)); n != 1 {
		t.Fatalf("no history should be written, got %d rows", n)
	}
}

func TestSecondLikeIsRejected(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")

	if _, err := svc.Like(ctx, alice, p.ID); err != nil {
		t.Fatalf("first like: %v", err)
	}
	before := len(historyOf(t, db, p.ID))

	_, err := svc.Like(ctx, alice, p.ID)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if msg, _ := apperror.UserMessage(err); msg != "You already supported this project!" {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := currentScore(t, db, p.ID); got != 1 {
		t.Fatalf("score = %d, want 1", got)
	}
	if after := len(historyOf(t, db, p.ID)); after != before {
		t.Fatalf("history grew from %d to %d", before, after)
	}

	if _, err := svc.Like(ctx, bob, p.ID); err != nil {
		t.Fatalf("like from another user: %v", err)
	}
	if got := currentScore(t, db, p.ID); got != 2 {
		t.Fatalf("score = %d, want 2", got)
	}
}

func TestUnknownProjectWritesNothing(t *testing.T) {
	db, svc := setupLedger(t)

	if _, err := svc.Like(context.Background(), alice, 999); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var logs int64
	db.Model(&entity.UserLog{}).Count(&logs)
	if logs != 0 {
		t.Fatalf("expected no user logs, got %d", logs)
	}
}

func TestDeleteReviewReversesDelta(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")

	res, err := svc.SubmitReview(ctx, alice, p.ID, "meh", 2)
	if err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	if _, err := svc.Like(ctx, bob, p.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}

	del, err := svc.DeleteReview(ctx, admin, res.ReviewID)
	if err != nil {
		t.Fatalf("DeleteReview: %v", err)
	}
	if del.Amount != 2 || del.After != 1 {
		t.Fatalf("unexpected deletion result %+v", del)
	}
	if del.Reason != "Review #1 deleted (rating: 2/5)" {
		t.Fatalf("reason = %q", del.Reason)
	}
	if got := currentScore(t, db, p.ID); got != 1 {
		t.Fatalf("score = %d, want 1", got)
	}

	if _, err := svc.DeleteReview(ctx, admin, res.ReviewID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestAdminChangeRequiresReason(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")

	if _, err := svc.AdminChange(ctx, admin, p.ID, 10, "   "); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	res, err := svc.AdminChange(ctx, admin, p.ID, -3, "spam reports")
	if err != nil {
		t.Fatalf("AdminChange: %v", err)
	}
	if res.Before != 0 || res.After != -3 {
		t.Fatalf("unexpected result %+v", res)
	}
	rows := historyOf(t, db, p.ID)
	if last := rows[len(rows)-1]; last.ChangeType != entity.ChangeAdmin || !last.IsAdminAction {
		t.Fatalf("unexpected entry %+v", last)
	}
}

func TestHistoryReconcilesWithScore(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")

	steps := []func() error{
		func() error { _, err := svc.SubmitReview(ctx, alice, p.ID, "a", 4); return err },
		func() error { _, err := svc.Like(ctx, bob, p.ID); return err },
		func() error { _, err := svc.AdminChange(ctx, admin, p.ID, 7, "event winner"); return err },
		func() error { _, err := svc.SubmitReview(ctx, alice, p.ID, "b", 1); return err },
		func() error { _, err := svc.SubmitReview(ctx, bob, p.ID, "c", 3); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	v, err := svc.Verify(ctx, p.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.Consistent || v.HistorySum != v.Score || v.BrokenAt != nil {
		t.Fatalf("ledger inconsistent: %+v", v)
	}
	if want := 2 + 1 + 7 - 7 + 0; v.Score != want {
		t.Fatalf("score = %d, want %d", v.Score, want)
	}
	if got := currentScore(t, db, p.ID); got != v.Score {
		t.Fatalf("stored score %d differs from verified %d", got, v.Score)
	}
}

func TestConcurrentLikesKeepLedgerConsistent(t *testing.T) {
	_, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")

	const users = 20
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := svc.Like(ctx, entity.Actor{ID: id}, p.ID); err != nil {
				errs <- err
			}
		}(int64(1000 + i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent like failed: %v", err)
	}

	v, err := svc.Verify(ctx, p.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Score != users || !v.Consistent {
		t.Fatalf("expected consistent score %d, got %+v", users, v)
	}
}

func TestDeleteProjectCascadesAndArchives(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	p := mustCreate(t, svc, "Alpha")
	other := mustCreate(t, svc, "Beta")

	if _, err := svc.SubmitReview(ctx, alice, p.ID, "good", 4); err != nil {
		t.Fatalf("SubmitReview: %v", err)
	}
	if _, err := svc.Like(ctx, bob, p.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if _, err := svc.Like(ctx, bob, other.ID); err != nil {
		t.Fatalf("Like other: %v", err)
	}
	if err := db.Create(&entity.ProjectPhoto{ProjectID: p.ID, PhotoFileID: "file-1", UpdatedBy: admin.ID}).Error; err != nil {
		t.Fatalf("create photo: %v", err)
	}

	res, err := svc.DeleteProject(ctx, admin, p.ID)
	if err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if res.Before != 3 || res.After != 0 || res.Amount != -3 {
		t.Fatalf("unexpected delete entry %+v", res)
	}
	if res.Reviews != 1 || res.Likes != 1 || res.HistoryEntries != 4 {
		t.Fatalf("unexpected purge counts %+v", res)
	}
	if res.Photo == nil || res.Photo.PhotoFileID != "file-1" {
		t.Fatalf("photo should be returned for cleanup: %+v", res.Photo)
	}

	if _, err := svc.Stats(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("deleted project lookup should be not found, got %v", err)
	}

	var count int64
	db.Model(&entity.UserLog{}).Where("project_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Fatalf("user logs left behind: %d", count)
	}
	db.Model(&entity.RatingHistory{}).Where("project_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Fatalf("history left behind: %d", count)
	}
	db.Model(&entity.ProjectPhoto{}).Where("project_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Fatalf("photo left behind: %d", count)
	}

	var archived []entity.ArchivedHistory
	db.Where("project_id = ?", p.ID).Order("original_id ASC").Find(&archived)
	if len(archived) != 4 {
		t.Fatalf("expected 4 archived entries, got %d", len(archived))
	}
	if last := archived[len(archived)-1]; last.ChangeType != entity.ChangeDelete || last.ProjectName != "Alpha" {
		t.Fatalf("unexpected archived delete entry %+v", last)
	}

	if got := currentScore(t, db, other.ID); got != 1 {
		t.Fatalf("other project affected, score = %d", got)
	}
}

func TestWeeklyTopUsesTrailingWeek(t *testing.T) {
	db, svc := setupLedger(t)
	ctx := context.Background()
	now := time.Now()
	svc.now = func() time.Time { return now }

	a := mustCreate(t, svc, "Alpha")
	b := mustCreate(t, svc, "Beta")
	c := mustCreate(t, svc, "Gamma")

	if _, err := svc.SubmitReview(ctx, alice, a.ID, "", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Like(ctx, alice, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitReview(ctx, bob, c.ID, "", 1); err != nil {
		t.Fatal(err)
	}

	old := now.Add(-10 * 24 * time.Hour)
	aid := alice.ID
	if err := db.Create(&entity.RatingHistory{
		ProjectID: b.ID, UserID: &aid, ChangeType: entity.ChangeLike,
		ScoreBefore: 1, ScoreAfter: 101, ChangeAmount: 100, CreatedAt: old,
	}).Error; err != nil {
		t.Fatalf("seed old history: %v", err)
	}

	top, err := svc.WeeklyTop(ctx)
	if err != nil {
		t.Fatalf("WeeklyTop: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(top), top)
	}
	if top[0].Name != "Alpha" || top[0].Total != 5 {
		t.Fatalf("first = %+v", top[0])
	}
	if top[1].Name != "Beta" || top[1].Total != 1 {
		t.Fatalf("old entries must be excluded, second = %+v", top[1])
	}
	if top[2].Name != "Gamma" || top[2].Total != -5 {
		t.Fatalf("third = %+v", top[2])
	}
}

func TestStatsAndOverview(t *testing.T) {
	_, svc := setupLedger(t)
	ctx := context.Background()
	a := mustCreate(t, svc, "Alpha")
	b := mustCreate(t, svc, "Beta")

	svc.SubmitReview(ctx, alice, a.ID, "", 5)
	svc.SubmitReview(ctx, bob, a.ID, "", 2)
	svc.Like(ctx, alice, a.ID)
	svc.SubmitReview(ctx, alice, b.ID, "", 4)

	stats, err := svc.Stats(ctx, a.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Reviews != 2 || stats.Likes != 1 || stats.HistoryEntries != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.AverageRating != 3.5 {
		t.Fatalf("average = %v", stats.AverageRating)
	}
	if stats.Distribution[5] != 1 || stats.Distribution[2] != 1 {
		t.Fatalf("distribution = %v", stats.Distribution)
	}

	overview, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(overview.Projects) != 2 || overview.TotalReviews != 3 || overview.TotalScore != 6 {
		t.Fatalf("unexpected overview %+v", overview)
	}
	if overview.Projects[0].Name != "Alpha" || overview.Projects[0].Reviews != 2 {
		t.Fatalf("projects should be ordered by score: %+v", overview.Projects)
	}
}

func TestFindUsers(t *testing.T) {
	_, svc := setupLedger(t)
	ctx := context.Background()
	a := mustCreate(t, svc, "Alpha")
	svc.SubmitReview(ctx, alice, a.ID, "", 5)
	svc.Like(ctx, alice, a.ID)
	svc.Like(ctx, bob, a.ID)

	byID, err := svc.FindUsers(ctx, "100")
	if err != nil {
		t.Fatalf("FindUsers by id: %v", err)
	}
	if len(byID) != 1 || byID[0].Reviews != 1 || byID[0].Likes != 1 {
		t.Fatalf("unexpected result %+v", byID)
	}

	byName, err := svc.FindUsers(ctx, "@BO")
	if err != nil {
		t.Fatalf("FindUsers by name: %v", err)
	}
	if len(byName) != 1 || byName[0].UserID != bob.ID {
		t.Fatalf("unexpected result %+v", byName)
	}

	if _, err := svc.FindUsers(ctx, " "); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func dtoInput(category, name string) dto.CreateProjectInput {
	return dto.CreateProjectInput{Category: category, Name: name, Description: name + " description"}
}
