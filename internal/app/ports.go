package app

import (
	"context"

	"histosaga-service/internal/domain"
)

// SessionRepository abstracts where live activity sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	Count() int
}

// ActivityLoader reads activity definitions from the remote store.
// Missing activities are reported as domain.ErrActivityNotFound.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, activityID string) (domain.Activity, error)
	ListActivities(ctx context.Context, subject string) ([]domain.Activity, error)
}

// ProgressStore is the remote side of a submission.
type ProgressStore interface {
	MergeProgress(ctx context.Context, delta domain.ProgressDelta) error
	IncrementUserAggregate(ctx context.Context, userID string, delta domain.AggregateDelta) error
	ListProgress(ctx context.Context, userID, subject string) (map[string]domain.ActivityProgress, error)
}

// UserStore holds registered users.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserAggregate(ctx context.Context, userID string) (domain.UserAggregate, error)
	// FindUsers matches on a stored document field, e.g. "usuario" or "email".
	FindUsers(ctx context.Context, field, value string) ([]domain.User, error)
	UpdateUser(ctx context.Context, userID string, update domain.UserUpdate) error
}

// ResetCodeStore keeps at most one password reset code per user.
type ResetCodeStore interface {
	SaveResetCode(ctx context.Context, code domain.ResetCode) error
	GetResetCode(ctx context.Context, userID string) (domain.ResetCode, error)
	IncrementResetAttempts(ctx context.Context, userID string) error
	MarkResetCodeUsed(ctx context.Context, userID string) error
	DeleteResetCode(ctx context.Context, userID string) error
}

// ConnectivitySource publishes reachability changes of the remote store.
type ConnectivitySource interface {
	Subscribe() (<-chan bool, func())
	Online() bool
}
