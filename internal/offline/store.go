package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"histosaga-service/internal/domain"
)

// Store is the local durable key-value store. Get returns domain.ErrKeyNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

const (
	queueKey          = "offline_progress"
	activityKeyPrefix = "offline_activity:"
)

// Queue holds progress submissions waiting for the remote store. All entries
// live under one key as a map, so a later entry for the same user and activity
// replaces the earlier one.
type Queue struct {
	store Store
	mu    sync.Mutex
}

func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// Put upserts the entry under its key.
func (q *Queue) Put(ctx context.Context, entry domain.OfflineProgressEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.loadLocked(ctx)
	if err != nil {
		return err
	}
	entries[entry.Key()] = entry
	return q.saveLocked(ctx, entries)
}

// List returns the pending entries ordered by key.
func (q *Queue) List(ctx context.Context) ([]domain.OfflineProgressEntry, error) {
	q.mu.Lock()
	entries, err := q.loadLocked(ctx)
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.OfflineProgressEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, entries[k])
	}
	return out, nil
}

// Remove drops the entry stored under key, if it is still the one that was
// read at timestamp. A newer entry queued meanwhile is kept.
func (q *Queue) Remove(ctx context.Context, key string, timestamp time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.loadLocked(ctx)
	if err != nil {
		return err
	}
	current, ok := entries[key]
	if !ok || !current.Timestamp.Equal(timestamp) {
		return nil
	}
	delete(entries, key)
	if len(entries) == 0 {
		return q.store.Remove(ctx, queueKey)
	}
	return q.saveLocked(ctx, entries)
}

func (q *Queue) loadLocked(ctx context.Context) (map[string]domain.OfflineProgressEntry, error) {
	entries := make(map[string]domain.OfflineProgressEntry)
	raw, err := q.store.Get(ctx, queueKey)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read offline queue: %w", err)
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode offline queue: %w", err)
	}
	return entries, nil
}

func (q *Queue) saveLocked(ctx context.Context, entries map[string]domain.OfflineProgressEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode offline queue: %w", err)
	}
	if err := q.store.Set(ctx, queueKey, raw); err != nil {
		return fmt.Errorf("write offline queue: %w", err)
	}
	return nil
}

// ActivityCache keeps the last definition fetched for each activity.
type ActivityCache struct {
	store Store
	clock func() time.Time
}

func NewActivityCache(store Store) *ActivityCache {
	return &ActivityCache{store: store, clock: time.Now}
}

func (c *ActivityCache) Save(ctx context.Context, activity domain.Activity) error {
	raw, err := json.Marshal(domain.CachedActivity{Activity: activity, CachedAt: c.clock().UTC()})
	if err != nil {
		return fmt.Errorf("encode activity %s: %w", activity.ID, err)
	}
	return c.store.Set(ctx, activityKeyPrefix+activity.ID, raw)
}

// Load returns domain.ErrKeyNotFound when nothing was cached for the id.
func (c *ActivityCache) Load(ctx context.Context, activityID string) (domain.CachedActivity, error) {
	raw, err := c.store.Get(ctx, activityKeyPrefix+activityID)
	if err != nil {
		return domain.CachedActivity{}, err
	}
	var cached domain.CachedActivity
	if err := json.Unmarshal(raw, &cached); err != nil {
		return domain.CachedActivity{}, fmt.Errorf("decode cached activity %s: %w", activityID, err)
	}
	return cached, nil
}
