package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"histosaga-service/internal/domain"
	"histosaga-service/internal/infra/memory"
	"histosaga-service/internal/question"
)

func TestActivityCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{ActivityLoader: memory.NewRemoteStore(sampleActivity())}
	cache := NewActivityCache(client, loader, time.Minute)

	got, err := cache.LoadActivity(context.Background(), "a1")
	if err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("activity:a1") {
		t.Fatalf("expected activity cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	again, _ := cache.LoadActivity(context.Background(), "a1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if again.Title != got.Title || again.Questions[0].Kind() != question.KindMultipleChoice {
		t.Fatalf("cached activity differs: %+v", again)
	}
}

func TestActivityCacheMissPropagatesNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewActivityCache(newClient(mr), memory.NewRemoteStore(), time.Minute)
	if _, err := cache.LoadActivity(context.Background(), "missing"); !errors.Is(err, domain.ErrActivityNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewLocalStore(newClient(mr), "histosaga:")
	if _, err := store.Get(ctx, "offline_progress"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected key not found, got %v", err)
	}
	if err := store.Set(ctx, "offline_progress", []byte(`{}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("histosaga:offline_progress") {
		t.Fatalf("expected prefixed key")
	}
	raw, err := store.Get(ctx, "offline_progress")
	if err != nil || string(raw) != `{}` {
		t.Fatalf("unexpected value %q (%v)", raw, err)
	}
	_ = store.Remove(ctx, "offline_progress")
	if mr.Exists("histosaga:offline_progress") {
		t.Fatalf("expected key removed")
	}
}

type countingLoader struct {
	ActivityLoader
	calls int
}

func (l *countingLoader) LoadActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	l.calls++
	return l.ActivityLoader.LoadActivity(ctx, activityID)
}

func sampleActivity() domain.Activity {
	return domain.Activity{
		ID:       "a1",
		Subject:  "historia",
		Title:    "Revolução Francesa",
		Position: 1,
		Questions: []question.Question{
			{Body: &question.MultipleChoice{Prompt: "Ano da queda da Bastilha?", Options: []string{"1789", "1799"}, Correct: "1789"}},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
