package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"histosaga-service/internal/domain"
	"histosaga-service/internal/metrics"
	"histosaga-service/internal/offline"
)

const reconcileParallelism = 4

// Reconciler drains the offline queue into the remote store.
type Reconciler struct {
	writer *ProgressWriter
	queue  *offline.Queue
	log    *zap.Logger

	// one pass at a time; concurrent callers wait and then run their own pass
	run sync.Mutex
}

func NewReconciler(writer *ProgressWriter, queue *offline.Queue, log *zap.Logger) *Reconciler {
	return &Reconciler{writer: writer, queue: queue, log: log}
}

// Reconcile writes every queued entry and removes the ones that succeeded.
// Entries that hit an unreachable store stay queued; entries the store
// rejects are dropped. A failure never stops the other entries.
func (r *Reconciler) Reconcile(ctx context.Context) (domain.ReconcileReport, error) {
	r.run.Lock()
	defer r.run.Unlock()

	entries, err := r.queue.List(ctx)
	if err != nil {
		return domain.ReconcileReport{}, fmt.Errorf("list offline queue: %w", err)
	}
	metrics.OfflinePending.Set(float64(len(entries)))
	report := domain.ReconcileReport{Pending: len(entries)}
	if len(entries) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileParallelism)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			outcome, err := r.reconcileEntry(gctx, entry)
			key := entry.Key()
			mu.Lock()
			defer mu.Unlock()
			metrics.ReconcileEntries.WithLabelValues(outcome).Inc()
			switch outcome {
			case "synced":
				report.Synced = append(report.Synced, key)
			case "dropped":
				if report.Dropped == nil {
					report.Dropped = make(map[string]string)
				}
				report.Dropped[key] = err.Error()
				r.log.Error("offline entry rejected by remote store, dropped", zap.String("key", key), zap.Error(err))
			default:
				if report.Failed == nil {
					report.Failed = make(map[string]string)
				}
				report.Failed[key] = err.Error()
				r.log.Warn("offline entry not reconciled", zap.String("key", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Synced)
	metrics.OfflinePending.Set(float64(len(report.Failed)))
	r.log.Info("offline queue reconciled",
		zap.Int("pending", report.Pending),
		zap.Int("synced", len(report.Synced)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("dropped", len(report.Dropped)),
	)
	return report, nil
}

// reconcileEntry writes one entry and reports synced, failed or dropped.
// Only an unreachable remote store leaves the entry queued; an entry the store
// rejects is removed since retrying it cannot succeed.
func (r *Reconciler) reconcileEntry(ctx context.Context, entry domain.OfflineProgressEntry) (string, error) {
	outcome := "synced"
	err := r.writer.Write(ctx, entry.Delta())
	if err != nil {
		if errors.Is(err, domain.ErrRemoteUnavailable) {
			return "failed", err
		}
		outcome = "dropped"
	}
	if rerr := r.queue.Remove(ctx, entry.Key(), entry.Timestamp); rerr != nil {
		return "failed", fmt.Errorf("remove entry: %w", rerr)
	}
	return outcome, err
}

// RunReconciler reconciles once at start when online, then whenever the
// source reports online again, until ctx is done. The source may coalesce a
// drop and recovery that happen during a pass into a single online event, so
// every online event triggers a pass.
func RunReconciler(ctx context.Context, source ConnectivitySource, r *Reconciler, log *zap.Logger) {
	events, cancel := source.Subscribe()
	defer cancel()

	if source.Online() {
		if _, err := r.Reconcile(ctx); err != nil {
			log.Warn("reconcile", zap.Error(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-events:
			if !ok {
				return
			}
			if !up {
				continue
			}
			if _, err := r.Reconcile(ctx); err != nil {
				log.Warn("reconcile", zap.Error(err))
			}
		}
	}
}
