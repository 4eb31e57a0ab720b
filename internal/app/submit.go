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

// ProgressWriter applies a submission to the remote store: the user totals
// first, when the attempt earned anything, then the per-activity record. An
// unknown user therefore fails before any progress record is created.
type ProgressWriter struct {
	store ProgressStore
}

func NewProgressWriter(store ProgressStore) *ProgressWriter {
	return &ProgressWriter{store: store}
}

func (w *ProgressWriter) Write(ctx context.Context, delta domain.ProgressDelta) error {
	if agg := delta.Aggregate(); !agg.Empty() {
		if err := w.store.IncrementUserAggregate(ctx, delta.UserID, agg); err != nil {
			return fmt.Errorf("increment aggregate of %s: %w", delta.UserID, err)
		}
	}
	if err := w.store.MergeProgress(ctx, delta); err != nil {
		return fmt.Errorf("merge progress %s/%s: %w", delta.UserID, delta.ActivityID, err)
	}
	return nil
}

// Submitter writes finished sessions remotely and queues them locally when
// that fails. It does not retry; the queue is drained by the Reconciler.
type Submitter struct {
	writer *ProgressWriter
	queue  *offline.Queue
	log    *zap.Logger
}

func NewSubmitter(writer *ProgressWriter, queue *offline.Queue, log *zap.Logger) *Submitter {
	return &Submitter{writer: writer, queue: queue, log: log}
}

// Submit reports savedOffline=true when the delta went to the offline queue.
// Only domain.ErrRemoteUnavailable is queued; any other failure, or a failed
// queue write, is returned and nothing is stored.
func (s *Submitter) Submit(ctx context.Context, delta domain.ProgressDelta, progress domain.SessionProgress) (bool, error) {
	err := s.writer.Write(ctx, delta)
	if err == nil {
		metrics.Submissions.WithLabelValues("remote").Inc()
		return false, nil
	}
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		metrics.Submissions.WithLabelValues("failed").Inc()
		return false, err
	}
	s.log.Warn("remote submission failed, queueing offline",
		zap.String("user_id", delta.UserID),
		zap.String("activity_id", delta.ActivityID),
		zap.Error(err),
	)

	entry := domain.OfflineProgressEntry{
		SubmissionID: delta.SubmissionID,
		UserID:       delta.UserID,
		ActivityID:   delta.ActivityID,
		Subject:      delta.Subject,
		Progress:     progress.Clone(),
		Completed:    delta.Completed,
		Timestamp:    delta.At,
	}
	if qerr := s.queue.Put(ctx, entry); qerr != nil {
		metrics.Submissions.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("queue offline progress: %w", qerr)
	}
	metrics.Submissions.WithLabelValues("offline").Inc()
	return true, nil
}
