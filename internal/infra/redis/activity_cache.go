package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"histosaga-service/internal/domain"
)

// ActivityLoader fetches activity definitions from the remote document store.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, activityID string) (domain.Activity, error)
	ListActivities(ctx context.Context, subject string) ([]domain.Activity, error)
}

// ActivityCache keeps activity definitions in Redis, shared by every instance,
// and falls back to the loader on a miss.
// Definitions are stored as JSON: SET activity:{activityID} {json} EX ttl
type ActivityCache struct {
	client *redis.Client
	loader ActivityLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewActivityCache(client *redis.Client, loader ActivityLoader, ttl time.Duration) *ActivityCache {
	return &ActivityCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ActivityCache) LoadActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	key := c.key(activityID)
	if activity, ok := c.lookup(ctx, key); ok {
		return activity, nil
	}

	result, err, _ := c.sf.Do(activityID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if activity, ok := c.lookup(ctx, key); ok {
			return activity, nil
		}

		activity, err := c.loader.LoadActivity(ctx, activityID)
		if err != nil {
			return domain.Activity{}, err
		}

		if raw, err := json.Marshal(activity); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return activity, nil
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return result.(domain.Activity), nil
}

func (c *ActivityCache) ListActivities(ctx context.Context, subject string) ([]domain.Activity, error) {
	return c.loader.ListActivities(ctx, subject)
}

func (c *ActivityCache) lookup(ctx context.Context, key string) (domain.Activity, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Activity{}, false
	}
	var activity domain.Activity
	if err := json.Unmarshal(raw, &activity); err != nil {
		return domain.Activity{}, false
	}
	return activity, true
}

func (c *ActivityCache) key(activityID string) string {
	return "activity:" + activityID
}

func (c *ActivityCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
