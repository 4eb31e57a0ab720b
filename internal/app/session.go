package app

import (
	"sort"
	"sync"
	"time"

	"histosaga-service/internal/domain"
	"histosaga-service/internal/question"
)

// State is the lifecycle position of an activity session. Loading happens
// before a Session exists: ActivityService.Open only builds one from a loaded activity.
type State int

const (
	StateInProgress State = iota + 1
	StateReviewIntro
	StateReviewing
	StateSubmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in-progress"
	case StateReviewIntro:
		return "review-intro"
	case StateReviewing:
		return "reviewing"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Prompt is the question currently presented to the learner.
type Prompt struct {
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Reviewing bool          `json:"reviewing"`
	Remaining int           `json:"remaining,omitempty"`
	Question  question.View `json:"question"`
}

// Feedback is shown after every answer, before advancing.
type Feedback struct {
	Index       int    `json:"index"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
	Attempts    int    `json:"attempts"`
}

// StepKind tells the caller what follows an Advance.
type StepKind int

const (
	StepQuestion StepKind = iota + 1
	StepReviewIntro
	StepSubmit
	// StepCompleted is reported by ActivityService once a submission was written or queued.
	StepCompleted
)

// Step is the result of advancing past answered feedback.
type Step struct {
	Kind   StepKind
	Prompt Prompt
	Missed int
}

// Outcome is the final result of a submitted session.
type Outcome struct {
	Stars        int                    `json:"stars"`
	XP           int                    `json:"xp"`
	Correct      int                    `json:"correct"`
	Attempts     int                    `json:"attempts"`
	SavedOffline bool                   `json:"savedOffline"`
	Progress     domain.SessionProgress `json:"progress"`
}

// Session is one learner's attempt at an activity.
type Session struct {
	id        string
	userID    string
	activity  domain.Activity
	fromCache bool
	createdAt time.Time
	now       func() time.Time

	mu       sync.Mutex
	state    State
	current  int
	answered bool
	progress domain.SessionProgress
	missed   []int
	outcome  Outcome
	failure  error
}

// NewSession starts an attempt at question 0 with empty progress.
func NewSession(id, userID string, activity domain.Activity, fromCache bool) *Session {
	return newSessionWithClock(id, userID, activity, fromCache, time.Now)
}

func newSessionWithClock(id, userID string, activity domain.Activity, fromCache bool, now func() time.Time) *Session {
	return &Session{
		id:        id,
		userID:    userID,
		activity:  activity,
		fromCache: fromCache,
		createdAt: now(),
		now:       now,
		state:     StateInProgress,
	}
}

func (s *Session) ID() string                { return s.id }
func (s *Session) UserID() string            { return s.userID }
func (s *Session) Activity() domain.Activity { return s.activity }
func (s *Session) FromCache() bool           { return s.fromCache }
func (s *Session) CreatedAt() time.Time      { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns a copy of the session progress.
func (s *Session) Progress() domain.SessionProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// Missed returns the indices still pending correction, in activity order.
func (s *Session) Missed() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.missed...)
}

// Current returns the question being presented.
func (s *Session) Current() (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress && s.state != StateReviewing {
		return Prompt{}, domain.ErrInvalidState
	}
	return s.promptLocked(), nil
}

func (s *Session) promptLocked() Prompt {
	p := Prompt{
		Index:     s.current,
		Total:     len(s.activity.Questions),
		Reviewing: s.state == StateReviewing,
		Question:  s.activity.Questions[s.current].View(),
	}
	if p.Reviewing {
		p.Remaining = len(s.missed)
	}
	return p
}

// Answer grades the answer to the current question and records it. The
// question can be answered again until the caller advances.
func (s *Session) Answer(a question.Answer) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress && s.state != StateReviewing {
		return Feedback{}, domain.ErrInvalidState
	}

	q := s.activity.Questions[s.current]
	correct := q.Grade(a)
	s.progress.Record(s.current, correct)

	switch {
	case s.state == StateReviewing && correct:
		s.removeMissedLocked(s.current)
	case s.state == StateInProgress && !correct:
		s.addMissedLocked(s.current)
	}
	s.answered = true

	result, _ := s.progress.Result(s.current)
	return Feedback{
		Index:       s.current,
		Correct:     correct,
		Explanation: q.Explanation,
		Attempts:    result.Attempts,
	}, nil
}

// Advance moves past the feedback of the current question.
func (s *Session) Advance() (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if (s.state != StateInProgress && s.state != StateReviewing) || !s.answered {
		return Step{}, domain.ErrInvalidState
	}

	if s.state == StateReviewing {
		if len(s.missed) == 0 {
			s.state = StateSubmitting
			return Step{Kind: StepSubmit}, nil
		}
		s.current = s.nextMissedLocked(s.current)
		s.answered = false
		return Step{Kind: StepQuestion, Prompt: s.promptLocked()}, nil
	}

	if s.current < len(s.activity.Questions)-1 {
		s.current++
		s.answered = false
		return Step{Kind: StepQuestion, Prompt: s.promptLocked()}, nil
	}
	if len(s.missed) > 0 {
		s.state = StateReviewIntro
		return Step{Kind: StepReviewIntro, Missed: len(s.missed)}, nil
	}
	s.state = StateSubmitting
	return Step{Kind: StepSubmit}, nil
}

// BeginReview leaves the review summary and presents the first missed question.
func (s *Session) BeginReview() (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewIntro || len(s.missed) == 0 {
		return Prompt{}, domain.ErrInvalidState
	}
	s.state = StateReviewing
	s.current = s.missed[0]
	s.answered = false
	return s.promptLocked(), nil
}

// Submission marks the attempt complete and returns what it adds to the
// learner's records.
func (s *Session) Submission() (domain.ProgressDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitting {
		return domain.ProgressDelta{}, domain.ErrInvalidState
	}
	s.progress.Completed = true
	delta := domain.NewProgressDelta(s.userID, s.activity.Subject, s.activity.ID, s.progress, s.now().UTC())
	delta.SubmissionID = s.id
	return delta, nil
}

// Complete records the submission outcome and ends the session.
func (s *Session) Complete(savedOffline bool) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitting {
		return Outcome{}, domain.ErrInvalidState
	}
	s.outcome = Outcome{
		Stars:        s.progress.Stars(),
		XP:           s.progress.XP(),
		Correct:      s.progress.CorrectCount,
		Attempts:     s.progress.Attempts,
		SavedOffline: savedOffline,
		Progress:     s.progress.Clone(),
	}
	s.state = StateDone
	return s.outcome, nil
}

// Fail ends a session whose results could be neither submitted nor queued.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.failure = err
}

// Outcome returns the result of a finished session.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.state == StateDone
}

func (s *Session) addMissedLocked(index int) {
	i := sort.SearchInts(s.missed, index)
	if i < len(s.missed) && s.missed[i] == index {
		return
	}
	s.missed = append(s.missed, 0)
	copy(s.missed[i+1:], s.missed[i:])
	s.missed[i] = index
}

func (s *Session) removeMissedLocked(index int) {
	i := sort.SearchInts(s.missed, index)
	if i < len(s.missed) && s.missed[i] == index {
		s.missed = append(s.missed[:i], s.missed[i+1:]...)
	}
}

// nextMissedLocked walks the missed set cyclically: the first pending index
// after the one just reviewed, wrapping to the start.
func (s *Session) nextMissedLocked(after int) int {
	i := sort.SearchInts(s.missed, after+1)
	if i == len(s.missed) {
		return s.missed[0]
	}
	return s.missed[i]
}
