package digest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kmbp.app/ratingbot/internal/entity"
	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
	"kmbp.app/ratingbot/internal/modules/ledger/repository"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"
	"kmbp.app/ratingbot/internal/testutil"
)

type post struct {
	category string
	text     string
}

type recordingPoster struct {
	posts []post
}

func (p *recordingPoster) Announce(ctx context.Context, category, text string) {
	p.posts = append(p.posts, post{category, text})
}

type countingJob struct {
	name     string
	schedule string
	err      error
	runs     int
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }
func (j *countingJob) Execute(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestSchedulerRegisterAndRunByName(t *testing.T) {
	s := NewScheduler(context.Background())

	daily := &countingJob{name: "daily", schedule: "0 4 * * *"}
	manual := &countingJob{name: "manual", err: errors.New("boom")}
	for _, job := range []Job{daily, manual} {
		if err := s.Register(job); err != nil {
			t.Fatalf("Register(%s): %v", job.Name(), err)
		}
	}

	if err := s.Register(&countingJob{name: "broken", schedule: "every tuesday"}); err == nil {
		t.Fatal("invalid cron expression should be rejected")
	}
	if got := strings.Join(s.Names(), ","); got != "daily,manual" {
		t.Fatalf("Names() = %q", got)
	}

	ctx := context.Background()
	if err := s.RunByName(ctx, "daily"); err != nil || daily.runs != 1 {
		t.Fatalf("RunByName(daily) err=%v runs=%d", err, daily.runs)
	}
	if err := s.RunByName(ctx, "manual"); err == nil {
		t.Fatal("job error should propagate")
	}
	if err := s.RunByName(ctx, "ghost"); err == nil {
		t.Fatal("unknown job should fail")
	}
}

func seedLedger(t *testing.T) (ledgerService.LedgerService, *entity.Project, func(score int)) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := ledgerService.NewLedgerService(repository.NewLedgerRepository(db), nil)
	ctx := context.Background()
	admin := entity.Actor{ID: 1, Username: "boss"}

	project, err := svc.CreateProject(ctx, admin, ledgerDto.CreateProjectInput{Category: "lot_channels", Name: "Lots & Lots"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := svc.AdminChange(ctx, admin, project.ID, 7, "launch bonus"); err != nil {
		t.Fatalf("AdminChange: %v", err)
	}

	tamper := func(score int) {
		if err := db.Model(&entity.Project{}).Where("id = ?", project.ID).Update("score", score).Error; err != nil {
			t.Fatalf("tamper: %v", err)
		}
	}
	return svc, project, tamper
}

func TestWeeklyDigestPostsToGeneralTopic(t *testing.T) {
	svc, _, _ := seedLedger(t)
	poster := &recordingPoster{}

	job := NewWeeklyDigest(svc, poster, "0 10 * * 1")
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(poster.posts) != 1 || poster.posts[0].category != "" {
		t.Fatalf("unexpected posts %+v", poster.posts)
	}
	text := poster.posts[0].text
	if !strings.Contains(text, "Lots &amp; Lots") || !strings.Contains(text, "(Lot channels): +7") {
		t.Fatalf("unexpected digest %q", text)
	}
}

func TestRenderWeeklyEmpty(t *testing.T) {
	if got := renderWeekly(nil); !strings.Contains(got, "No score changes") {
		t.Fatalf("unexpected empty digest %q", got)
	}
}

func TestLedgerCheckReportsOnlyMismatches(t *testing.T) {
	svc, _, tamper := seedLedger(t)
	poster := &recordingPoster{}
	job := NewLedgerCheck(svc, poster, "")

	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(poster.posts) != 0 {
		t.Fatalf("clean ledger should post nothing, got %+v", poster.posts)
	}

	tamper(50)
	if err := job.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(poster.posts) != 1 || !strings.Contains(poster.posts[0].text, "score 50, history 7") {
		t.Fatalf("unexpected posts %+v", poster.posts)
	}
}
