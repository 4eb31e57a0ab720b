package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"histosaga-service/internal/domain"
)

// ActivityLoader fetches activity definitions from the remote document store.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, activityID string) (domain.Activity, error)
	ListActivities(ctx context.Context, subject string) ([]domain.Activity, error)
}

// ActivityCache caches activity definitions with TTL to avoid repeated remote reads.
type ActivityCache struct {
	loader ActivityLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedActivity
}

type cachedActivity struct {
	activity  domain.Activity
	expiresAt time.Time
}

func NewActivityCache(loader ActivityLoader, ttl time.Duration) *ActivityCache {
	return &ActivityCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedActivity),
	}
}

func (c *ActivityCache) LoadActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	if activity, ok := c.lookup(activityID); ok {
		return activity, nil
	}

	result, err, _ := c.sf.Do(activityID, func() (interface{}, error) {
		if activity, ok := c.lookup(activityID); ok {
			return activity, nil
		}

		activity, err := c.loader.LoadActivity(ctx, activityID)
		if err != nil {
			return domain.Activity{}, err
		}

		c.mu.Lock()
		c.cache[activityID] = cachedActivity{
			activity:  activity,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return activity, nil
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return result.(domain.Activity), nil
}

// ListActivities is not cached; listings change as content is authored.
func (c *ActivityCache) ListActivities(ctx context.Context, subject string) ([]domain.Activity, error) {
	return c.loader.ListActivities(ctx, subject)
}

func (c *ActivityCache) lookup(activityID string) (domain.Activity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[activityID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Activity{}, false
	}
	return entry.activity, true
}

func (c *ActivityCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
