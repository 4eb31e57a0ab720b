package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"histosaga-service/internal/domain"
)

func TestMergeProgressAppliesSubmissionOnce(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStore()
	if err := store.CreateUser(ctx, domain.User{ID: "u1", Username: "ana"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	var p domain.SessionProgress
	p.Record(0, true)
	p.Completed = true
	delta := domain.NewProgressDelta("u1", "historia", "a1", p, time.Now())
	delta.SubmissionID = "s1"

	for i := 0; i < 2; i++ {
		if err := store.MergeProgress(ctx, delta); err != nil {
			t.Fatalf("merge: %v", err)
		}
		if err := store.IncrementUserAggregate(ctx, "u1", delta.Aggregate()); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	records, err := store.ListProgress(ctx, "u1", "historia")
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	if got := records["a1"]; got.XP != 10 || got.Attempts != 1 || got.Stars != 1 {
		t.Fatalf("expected a single merge, got %+v", got)
	}
	agg, err := store.GetUserAggregate(ctx, "u1")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.XP != 10 || agg.Stars != 1 || !agg.FirstActivity {
		t.Fatalf("expected a single increment, got %+v", agg)
	}
}

func TestAppliedSubmissionsAreCapped(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStore()
	if err := store.CreateUser(ctx, domain.User{ID: "u1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	delta := domain.AggregateDelta{XP: 10}
	for i := 0; i <= submissionHistory; i++ {
		delta.SubmissionID = fmt.Sprintf("s%d", i)
		if err := store.IncrementUserAggregate(ctx, "u1", delta); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	rec := store.users["u1"]
	if len(rec.applied.ids) != submissionHistory {
		t.Fatalf("expected %d remembered ids, got %d", submissionHistory, len(rec.applied.ids))
	}
	if rec.applied.seen("s0") || !rec.applied.seen(fmt.Sprintf("s%d", submissionHistory)) {
		t.Fatalf("expected the oldest id forgotten and the newest kept")
	}

	// a recent id is still deduplicated
	delta.SubmissionID = "s50"
	if err := store.IncrementUserAggregate(ctx, "u1", delta); err != nil {
		t.Fatalf("replay: %v", err)
	}
	agg, _ := store.GetUserAggregate(ctx, "u1")
	if agg.XP != 10*(submissionHistory+1) {
		t.Fatalf("replayed submission counted again, xp=%d", agg.XP)
	}
}

func TestRemoteStoreOffline(t *testing.T) {
	store := NewRemoteStore(sampleActivity())
	store.SetOnline(false)
	if err := store.Ping(context.Background()); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err := store.MergeProgress(context.Background(), domain.ProgressDelta{UserID: "u1"}); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestFindUsersByField(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStore()
	_ = store.CreateUser(ctx, domain.User{ID: "u1", Username: "ana", Email: "ana@example.com"})
	_ = store.CreateUser(ctx, domain.User{ID: "u2", Username: "bia", Email: "bia@example.com"})

	users, err := store.FindUsers(ctx, "email", "bia@example.com")
	if err != nil {
		t.Fatalf("find users: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u2" {
		t.Fatalf("unexpected users %+v", users)
	}
	if _, err := store.FindUsers(ctx, "senha", "x"); err == nil {
		t.Fatalf("expected unsupported field error")
	}
}

func TestResetCodeLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewRemoteStore()
	if _, err := store.GetResetCode(ctx, "u1"); !errors.Is(err, domain.ErrResetCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_ = store.SaveResetCode(ctx, domain.ResetCode{UserID: "u1", Code: "123456"})
	_ = store.IncrementResetAttempts(ctx, "u1")
	_ = store.MarkResetCodeUsed(ctx, "u1")
	code, err := store.GetResetCode(ctx, "u1")
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	if code.Attempts != 1 || !code.Used {
		t.Fatalf("unexpected code %+v", code)
	}
	_ = store.DeleteResetCode(ctx, "u1")
	if _, err := store.GetResetCode(ctx, "u1"); !errors.Is(err, domain.ErrResetCodeNotFound) {
		t.Fatalf("expected deleted code, got %v", err)
	}
}
