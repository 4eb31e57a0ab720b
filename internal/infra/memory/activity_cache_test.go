package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"histosaga-service/internal/domain"
	"histosaga-service/internal/question"
)

func TestActivityCacheCaches(t *testing.T) {
	loader := &countingLoader{ActivityLoader: NewRemoteStore(sampleActivity())}
	cache := NewActivityCache(loader, time.Minute)

	if _, err := cache.LoadActivity(context.Background(), "a1"); err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := cache.LoadActivity(context.Background(), "a1"); err != nil {
		t.Fatalf("load activity 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestActivityCacheExpires(t *testing.T) {
	loader := &countingLoader{ActivityLoader: NewRemoteStore(sampleActivity())}
	cache := NewActivityCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.LoadActivity(context.Background(), "a1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.LoadActivity(context.Background(), "a1")
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}
}

func TestActivityCacheDoesNotCacheErrors(t *testing.T) {
	remote := NewRemoteStore(sampleActivity())
	remote.SetOnline(false)
	cache := NewActivityCache(remote, time.Minute)

	if _, err := cache.LoadActivity(context.Background(), "a1"); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
	remote.SetOnline(true)
	if _, err := cache.LoadActivity(context.Background(), "a1"); err != nil {
		t.Fatalf("expected load once remote is back, got %v", err)
	}
}

type countingLoader struct {
	ActivityLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	l.calls.Add(1)
	return l.ActivityLoader.LoadActivity(ctx, activityID)
}

func sampleActivity() domain.Activity {
	return domain.Activity{
		ID:       "a1",
		Subject:  "historia",
		Title:    "Brasil Colônia",
		Position: 1,
		Questions: []question.Question{
			{Body: &question.MultipleChoice{Prompt: "Ano do descobrimento?", Options: []string{"1500", "1822"}, Correct: "1500"}},
		},
	}
}
