package memory

import (
	"context"
	"testing"

	"histosaga-service/internal/app"
	"histosaga-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := app.NewSession("s1", "u1", sampleActivity(), false)
	store.Put(session)
	if got, ok := store.Get("s1"); !ok || got != session {
		t.Fatalf("expected session present")
	}
	if store.Count() != 1 {
		t.Fatalf("expected one session, got %d", store.Count())
	}

	store.Delete("s1")
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestLocalStore(t *testing.T) {
	store := NewLocalStore()
	ctx := context.Background()
	if _, err := store.Get(ctx, "k"); err != domain.ErrKeyNotFound {
		t.Fatalf("expected key not found, got %v", err)
	}
	value := []byte("v1")
	_ = store.Set(ctx, "k", value)
	value[0] = 'x'
	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("expected stored copy v1, got %q (%v)", got, err)
	}
	_ = store.Remove(ctx, "k")
	if _, err := store.Get(ctx, "k"); err != domain.ErrKeyNotFound {
		t.Fatalf("expected key removed, got %v", err)
	}
}
