package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"histosaga-service/internal/domain"
	"histosaga-service/internal/metrics"
	"histosaga-service/internal/question"
)

// ActivityService contains the activity session use cases.
type ActivityService struct {
	sessions   SessionRepository
	users      UserStore
	activities *ActivityRepository
	submitter  *Submitter
	log        *zap.Logger
	newID      func() string
}

func NewActivityService(sessions SessionRepository, users UserStore, activities *ActivityRepository, submitter *Submitter, log *zap.Logger) *ActivityService {
	return &ActivityService{
		sessions:   sessions,
		users:      users,
		activities: activities,
		submitter:  submitter,
		log:        log,
		newID:      uuid.NewString,
	}
}

// Opened is the start of an attempt.
type Opened struct {
	SessionID string                 `json:"sessionId"`
	Activity  domain.ActivitySummary `json:"activity"`
	FromCache bool                   `json:"fromCache"`
	Prompt    Prompt                 `json:"prompt"`
}

// Progressed is what the learner sees after continuing past feedback.
type Progressed struct {
	Kind    StepKind
	Prompt  Prompt
	Missed  int
	Outcome Outcome
}

// Open loads the activity and starts a session on its first question.
// Unknown users are rejected; while the remote store is unreachable the user
// cannot be checked and the session opens anyway.
func (s *ActivityService) Open(ctx context.Context, userID, activityID string) (Opened, error) {
	loaded, err := s.activities.GetActivity(ctx, activityID)
	if err != nil {
		return Opened{}, err
	}
	if len(loaded.Activity.Questions) == 0 {
		return Opened{}, fmt.Errorf("activity %s: %w", activityID, domain.ErrActivityEmpty)
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if !errors.Is(err, domain.ErrRemoteUnavailable) {
			return Opened{}, fmt.Errorf("open activity %s for %s: %w", activityID, userID, err)
		}
		s.log.Debug("user not verified, remote unavailable", zap.String("user_id", userID), zap.Error(err))
	}

	session := NewSession(s.newID(), userID, loaded.Activity, loaded.FromCache)
	s.sessions.Put(session)
	metrics.SessionsActive.Set(float64(s.sessions.Count()))
	if loaded.FromCache {
		metrics.SessionsOpened.WithLabelValues("cache").Inc()
	} else {
		metrics.SessionsOpened.WithLabelValues("remote").Inc()
	}

	prompt, err := session.Current()
	if err != nil {
		return Opened{}, err
	}
	s.log.Debug("session opened",
		zap.String("session_id", session.ID()),
		zap.String("user_id", userID),
		zap.String("activity_id", activityID),
		zap.Bool("from_cache", loaded.FromCache),
	)
	return Opened{
		SessionID: session.ID(),
		Activity:  loaded.Activity.Summary(),
		FromCache: loaded.FromCache,
		Prompt:    prompt,
	}, nil
}

// Answer grades an answer to the session's current question.
func (s *ActivityService) Answer(_ context.Context, sessionID string, answer question.Answer) (Feedback, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Feedback{}, domain.ErrSessionNotFound
	}
	prompt, err := session.Current()
	if err != nil {
		return Feedback{}, err
	}
	feedback, err := session.Answer(answer)
	if err != nil {
		return Feedback{}, err
	}
	metrics.AnswersGraded.WithLabelValues(prompt.Question.Kind, metrics.Result(feedback.Correct)).Inc()
	return feedback, nil
}

// Continue advances past feedback. When the attempt is over it is submitted,
// or queued offline, and the session is released.
func (s *ActivityService) Continue(ctx context.Context, sessionID string) (Progressed, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Progressed{}, domain.ErrSessionNotFound
	}
	step, err := session.Advance()
	if err != nil {
		return Progressed{}, err
	}
	switch step.Kind {
	case StepQuestion:
		return Progressed{Kind: StepQuestion, Prompt: step.Prompt}, nil
	case StepReviewIntro:
		return Progressed{Kind: StepReviewIntro, Missed: step.Missed}, nil
	default:
		outcome, err := s.submit(ctx, session)
		if err != nil {
			return Progressed{}, err
		}
		return Progressed{Kind: StepCompleted, Outcome: outcome}, nil
	}
}

// BeginReview starts the pass over missed questions.
func (s *ActivityService) BeginReview(_ context.Context, sessionID string) (Prompt, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Prompt{}, domain.ErrSessionNotFound
	}
	return session.BeginReview()
}

// Abandon drops an unfinished session; nothing is persisted.
func (s *ActivityService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if state := session.State(); state != StateDone && state != StateFailed {
		s.log.Debug("session abandoned", zap.String("session_id", sessionID), zap.Stringer("state", state))
	}
	s.release(sessionID)
}

func (s *ActivityService) submit(ctx context.Context, session *Session) (Outcome, error) {
	delta, err := session.Submission()
	if err != nil {
		return Outcome{}, err
	}
	savedOffline, err := s.submitter.Submit(ctx, delta, session.Progress())
	if err != nil {
		session.Fail(err)
		s.release(session.ID())
		return Outcome{}, err
	}
	outcome, err := session.Complete(savedOffline)
	if err != nil {
		return Outcome{}, err
	}
	s.release(session.ID())
	s.log.Info("session completed",
		zap.String("session_id", session.ID()),
		zap.String("user_id", session.UserID()),
		zap.String("activity_id", delta.ActivityID),
		zap.Int("stars", outcome.Stars),
		zap.Int("xp", outcome.XP),
		zap.Bool("saved_offline", savedOffline),
	)
	return outcome, nil
}

func (s *ActivityService) release(sessionID string) {
	s.sessions.Delete(sessionID)
	metrics.SessionsActive.Set(float64(s.sessions.Count()))
}
