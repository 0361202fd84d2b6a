package conversation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReviewFlowHappyPath(t *testing.T) {
	m := NewMachine(NewMemoryStore())
	ctx := context.Background()

	if err := m.Begin(ctx, 1, Flow{State: WaitingText, ProjectID: 9}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	flow, err := m.Advance(ctx, 1, WaitingText, WaitingRating, func(f *Flow) { f.ReviewText = "solid" })
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if flow.State != WaitingRating || flow.ProjectID != 9 || flow.ReviewText != "solid" {
		t.Fatalf("unexpected flow %+v", flow)
	}

	done, err := m.Finish(ctx, 1, WaitingRating)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if done.ReviewText != "solid" {
		t.Fatalf("finished flow lost its data: %+v", done)
	}

	cur, _ := m.Current(ctx, 1)
	if cur.Active() {
		t.Fatalf("flow should be idle after commit, got %+v", cur)
	}
}

func TestBackToText(t *testing.T) {
	m := NewMachine(NewMemoryStore())
	ctx := context.Background()
	m.Begin(ctx, 1, Flow{State: WaitingText, ProjectID: 3})
	m.Advance(ctx, 1, WaitingText, WaitingRating, func(f *Flow) { f.ReviewText = "first" })

	flow, err := m.Advance(ctx, 1, WaitingRating, WaitingText, nil)
	if err != nil {
		t.Fatalf("back to text: %v", err)
	}
	if flow.State != WaitingText || flow.ProjectID != 3 {
		t.Fatalf("unexpected flow %+v", flow)
	}
}

func TestStaleTransitionsAreRejected(t *testing.T) {
	m := NewMachine(NewMemoryStore())
	ctx := context.Background()

	if _, err := m.Finish(ctx, 1, WaitingRating); !errors.Is(err, ErrStaleState) {
		t.Fatalf("finishing an idle flow must be stale, got %v", err)
	}

	m.Begin(ctx, 1, Flow{State: WaitingReason, ProjectID: 1, Delta: 5})
	if _, err := m.Advance(ctx, 1, WaitingText, WaitingRating, nil); !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected stale state, got %v", err)
	}

	cur, _ := m.Current(ctx, 1)
	if cur.State != WaitingReason || cur.Delta != 5 {
		t.Fatalf("stale input must not change the flow, got %+v", cur)
	}
}

func TestIllegalTransition(t *testing.T) {
	m := NewMachine(NewMemoryStore())
	ctx := context.Background()
	m.Begin(ctx, 1, Flow{State: WaitingPhoto, ProjectID: 1})

	_, err := m.Advance(ctx, 1, WaitingPhoto, WaitingRating, nil)
	if err == nil || errors.Is(err, ErrStaleState) {
		t.Fatalf("expected illegal transition error, got %v", err)
	}
}

func TestStartingFlowAbandonsPrevious(t *testing.T) {
	m := NewMachine(NewMemoryStore())
	ctx := context.Background()
	m.Begin(ctx, 1, Flow{State: WaitingText, ProjectID: 1})
	m.Begin(ctx, 1, Flow{State: WaitingPhoto, ProjectID: 2})

	cur, _ := m.Current(ctx, 1)
	if cur.State != WaitingPhoto || cur.ProjectID != 2 {
		t.Fatalf("new flow should own the slot, got %+v", cur)
	}

	if err := m.Begin(ctx, 1, Flow{}); err == nil {
		t.Fatal("beginning an idle flow should fail")
	}
}

func TestCancelFromAnyState(t *testing.T) {
	ctx := context.Background()
	for _, state := range []State{WaitingText, WaitingRating, WaitingReason, WaitingPhoto, WaitingQuery} {
		m := NewMachine(NewMemoryStore())
		m.Begin(ctx, 1, Flow{State: state})

		had, err := m.Cancel(ctx, 1)
		if err != nil || !had {
			t.Fatalf("Cancel from %q = %v, %v", state, had, err)
		}
		cur, _ := m.Current(ctx, 1)
		if cur.Active() {
			t.Fatalf("flow still active after cancel from %q", state)
		}
	}

	m := NewMachine(NewMemoryStore())
	had, err := m.Cancel(ctx, 1)
	if err != nil || had {
		t.Fatalf("cancel with no flow = %v, %v", had, err)
	}
}

func TestFlowsAreKeyedPerUser(t *testing.T) {
	m := NewMachine(NewMemoryStore())
	ctx := context.Background()
	m.Begin(ctx, 1, Flow{State: WaitingText, ProjectID: 1})
	m.Begin(ctx, 2, Flow{State: WaitingQuery})

	m.Cancel(ctx, 2)
	cur, _ := m.Current(ctx, 1)
	if cur.State != WaitingText {
		t.Fatalf("cancelling user 2 touched user 1: %+v", cur)
	}
}

func TestMemoryLockDebounces(t *testing.T) {
	lock := NewMemoryLock().(*memoryLock)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := lock.Acquire(ctx, "review:1:9", 3*time.Second)
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	ok, _ = lock.Acquire(ctx, "review:1:9", 3*time.Second)
	if ok {
		t.Fatal("second acquire within ttl should fail")
	}
	ok, _ = lock.Acquire(ctx, "review:2:9", 3*time.Second)
	if !ok {
		t.Fatal("different key should not be blocked")
	}

	now = now.Add(4 * time.Second)
	ok, _ = lock.Acquire(ctx, "review:1:9", 3*time.Second)
	if !ok {
		t.Fatal("acquire after ttl should succeed")
	}
}

func TestMemoryLockRelease(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, "review:1:9", time.Minute); !ok {
		t.Fatal("first acquire should succeed")
	}
	if err := lock.Release(ctx, "review:1:9"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := lock.Acquire(ctx, "review:1:9", time.Minute); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestFlowKey(t *testing.T) {
	if got := flowKey(42); got != "flow:42" {
		t.Fatalf("flowKey = %q", got)
	}
}
