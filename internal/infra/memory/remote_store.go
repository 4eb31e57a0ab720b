package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"histosaga-service/internal/domain"
)

// RemoteStore is an in-process stand-in for the remote document store, used
// for demos and tests. SetOnline(false) makes every call fail with
// domain.ErrRemoteUnavailable.
type RemoteStore struct {
	mu         sync.RWMutex
	online     bool
	activities map[string]domain.Activity
	progress   map[string]*progressRecord
	users      map[string]*userRecord
	codes      map[string]domain.ResetCode
}

type progressRecord struct {
	domain.ActivityProgress
	applied submissions
}

type userRecord struct {
	domain.User
	applied submissions
}

// submissionHistory matches the number of applied ids the document store keeps.
const submissionHistory = 100

// submissions holds the most recent applied submission ids, oldest first.
type submissions struct {
	ids []string
}

func (s *submissions) seen(id string) bool {
	if id == "" {
		return false
	}
	for _, applied := range s.ids {
		if applied == id {
			return true
		}
	}
	return false
}

func (s *submissions) remember(id string) {
	if id == "" {
		return
	}
	s.ids = append(s.ids, id)
	if over := len(s.ids) - submissionHistory; over > 0 {
		s.ids = append(s.ids[:0:0], s.ids[over:]...)
	}
}

func NewRemoteStore(activities ...domain.Activity) *RemoteStore {
	s := &RemoteStore{
		online:     true,
		activities: make(map[string]domain.Activity, len(activities)),
		progress:   make(map[string]*progressRecord),
		users:      make(map[string]*userRecord),
		codes:      make(map[string]domain.ResetCode),
	}
	for _, a := range activities {
		s.activities[a.ID] = a
	}
	return s
}

func (s *RemoteStore) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}

func (s *RemoteStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkLocked()
}

func (s *RemoteStore) checkLocked() error {
	if !s.online {
		return domain.ErrRemoteUnavailable
	}
	return nil
}

func (s *RemoteStore) LoadActivity(_ context.Context, activityID string) (domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return domain.Activity{}, err
	}
	activity, ok := s.activities[activityID]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	return activity, nil
}

func (s *RemoteStore) ListActivities(_ context.Context, subject string) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0)
	for _, a := range s.activities {
		if a.Subject == subject {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func progressKey(userID, subject, activityID string) string {
	return userID + "/" + subject + "/" + activityID
}

func (s *RemoteStore) MergeProgress(_ context.Context, delta domain.ProgressDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	key := progressKey(delta.UserID, delta.Subject, delta.ActivityID)
	rec, ok := s.progress[key]
	if !ok {
		rec = &progressRecord{}
		s.progress[key] = rec
	}
	if rec.applied.seen(delta.SubmissionID) {
		return nil
	}
	rec.Apply(delta)
	rec.applied.remember(delta.SubmissionID)
	return nil
}

func (s *RemoteStore) IncrementUserAggregate(_ context.Context, userID string, delta domain.AggregateDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	rec, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if rec.applied.seen(delta.SubmissionID) {
		return nil
	}
	rec.UserAggregate.Apply(delta)
	rec.applied.remember(delta.SubmissionID)
	return nil
}

func (s *RemoteStore) ListProgress(_ context.Context, userID, subject string) (map[string]domain.ActivityProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]domain.ActivityProgress)
	for _, rec := range s.progress {
		if rec.UserID == userID && rec.Subject == subject {
			out[rec.ActivityID] = cloneProgress(rec.ActivityProgress)
		}
	}
	return out, nil
}

func cloneProgress(p domain.ActivityProgress) domain.ActivityProgress {
	questions := make(map[string]domain.QuestionRecord, len(p.Questions))
	for k, v := range p.Questions {
		questions[k] = v
	}
	p.Questions = questions
	return p
}

func (s *RemoteStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	s.users[user.ID] = &userRecord{User: user}
	return nil
}

func (s *RemoteStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return domain.User{}, err
	}
	rec, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return rec.User, nil
}

func (s *RemoteStore) GetUserAggregate(ctx context.Context, userID string) (domain.UserAggregate, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.UserAggregate{}, err
	}
	return user.UserAggregate, nil
}

func (s *RemoteStore) FindUsers(_ context.Context, field, value string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	var out []domain.User
	for _, rec := range s.users {
		var got string
		switch field {
		case "usuario":
			got = rec.Username
		case "email":
			got = rec.Email
		case "_id":
			got = rec.ID
		default:
			return nil, fmt.Errorf("unsupported user field %q", field)
		}
		if got == value {
			out = append(out, rec.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RemoteStore) UpdateUser(_ context.Context, userID string, update domain.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	rec, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if update.PasswordHash != nil {
		rec.PasswordHash = *update.PasswordHash
	}
	if update.Streak != nil {
		rec.Streak = *update.Streak
	}
	if update.LastAccess != nil {
		rec.LastAccess = *update.LastAccess
	}
	if update.LastLogin != nil {
		rec.LastLogin = *update.LastLogin
	}
	return nil
}

func (s *RemoteStore) SaveResetCode(_ context.Context, code domain.ResetCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	s.codes[code.UserID] = code
	return nil
}

func (s *RemoteStore) GetResetCode(_ context.Context, userID string) (domain.ResetCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(); err != nil {
		return domain.ResetCode{}, err
	}
	code, ok := s.codes[userID]
	if !ok {
		return domain.ResetCode{}, domain.ErrResetCodeNotFound
	}
	return code, nil
}

func (s *RemoteStore) IncrementResetAttempts(_ context.Context, userID string) error {
	return s.updateCode(userID, func(c *domain.ResetCode) { c.Attempts++ })
}

func (s *RemoteStore) MarkResetCodeUsed(_ context.Context, userID string) error {
	return s.updateCode(userID, func(c *domain.ResetCode) { c.Used = true })
}

func (s *RemoteStore) updateCode(userID string, fn func(*domain.ResetCode)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	code, ok := s.codes[userID]
	if !ok {
		return domain.ErrResetCodeNotFound
	}
	fn(&code)
	s.codes[userID] = code
	return nil
}

func (s *RemoteStore) DeleteResetCode(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	delete(s.codes, userID)
	return nil
}
