package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"histosaga-service/internal/domain"
	"histosaga-service/internal/metrics"
	"histosaga-service/internal/offline"
)

// LoadedActivity is an activity definition plus where it came from.
type LoadedActivity struct {
	Activity  domain.Activity
	FromCache bool
}

// ActivityRepository reads activities from the remote store and falls back to
// the local copy written on the last successful read.
type ActivityRepository struct {
	remote ActivityLoader
	local  *offline.ActivityCache
	log    *zap.Logger
}

func NewActivityRepository(remote ActivityLoader, local *offline.ActivityCache, log *zap.Logger) *ActivityRepository {
	return &ActivityRepository{remote: remote, local: local, log: log}
}

// GetActivity returns domain.ErrActivityNotFound only when neither the remote
// store nor the local cache can provide the activity.
func (r *ActivityRepository) GetActivity(ctx context.Context, activityID string) (LoadedActivity, error) {
	activity, remoteErr := r.remote.LoadActivity(ctx, activityID)
	if remoteErr == nil {
		if err := r.local.Save(ctx, activity); err != nil {
			r.log.Warn("cache activity locally", zap.String("activity_id", activityID), zap.Error(err))
		}
		metrics.ActivityLoads.WithLabelValues("remote").Inc()
		return LoadedActivity{Activity: activity}, nil
	}

	cached, err := r.local.Load(ctx, activityID)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			r.log.Warn("read cached activity", zap.String("activity_id", activityID), zap.Error(err))
		}
		metrics.ActivityLoads.WithLabelValues("miss").Inc()
		return LoadedActivity{}, fmt.Errorf("activity %s: %w", activityID, domain.ErrActivityNotFound)
	}
	r.log.Info("serving cached activity",
		zap.String("activity_id", activityID),
		zap.Time("cached_at", cached.CachedAt),
		zap.NamedError("remote_error", remoteErr),
	)
	metrics.ActivityLoads.WithLabelValues("cache").Inc()
	return LoadedActivity{Activity: cached.Activity, FromCache: true}, nil
}

// ListActivities returns the activities of a subject ordered by position.
func (r *ActivityRepository) ListActivities(ctx context.Context, subject string) ([]domain.Activity, error) {
	activities, err := r.remote.ListActivities(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("list activities of %s: %w", subject, err)
	}
	return activities, nil
}
