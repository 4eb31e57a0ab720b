package domain

import (
	"sort"
	"strconv"
	"time"
)

// XPPerCorrectAnswer is awarded for every distinct question answered correctly in a session.
const XPPerCorrectAnswer = 10

// QuestionResult is the session state of one question.
type QuestionResult struct {
	Index           int  `json:"index"`
	Correct         bool `json:"acertou"`
	Attempts        int  `json:"tentativas"`
	FirstTryCorrect bool `json:"acertouPrimeira"`
}

// SessionProgress accumulates one activity attempt. Correctness is monotonic:
// once a question is correct, later wrong answers do not undo it.
type SessionProgress struct {
	CorrectCount int              `json:"acertos"`
	Attempts     int              `json:"tentativas"`
	Completed    bool             `json:"concluida"`
	Answered     []QuestionResult `json:"questoesRespondidas"`
}

// Record registers an answer to the question at index and reports whether the
// question became correct for the first time.
func (p *SessionProgress) Record(index int, correct bool) bool {
	p.Attempts++
	for i := range p.Answered {
		r := &p.Answered[i]
		if r.Index != index {
			continue
		}
		r.Attempts++
		becameCorrect := correct && !r.Correct
		r.Correct = r.Correct || correct
		if becameCorrect {
			p.CorrectCount++
		}
		return becameCorrect
	}
	p.Answered = append(p.Answered, QuestionResult{
		Index:           index,
		Correct:         correct,
		Attempts:        1,
		FirstTryCorrect: correct,
	})
	if correct {
		p.CorrectCount++
	}
	return correct
}

// Result returns the state of the question at index.
func (p SessionProgress) Result(index int) (QuestionResult, bool) {
	for _, r := range p.Answered {
		if r.Index == index {
			return r, true
		}
	}
	return QuestionResult{}, false
}

// AllCorrect reports whether every answered question ended up correct.
func (p SessionProgress) AllCorrect() bool {
	for _, r := range p.Answered {
		if !r.Correct {
			return false
		}
	}
	return true
}

// Stars is 1 for a fully corrected attempt, 0 otherwise.
func (p SessionProgress) Stars() int {
	if p.AllCorrect() {
		return 1
	}
	return 0
}

// XP is the experience earned by the attempt.
func (p SessionProgress) XP() int {
	return p.CorrectCount * XPPerCorrectAnswer
}

// BestStreak is the longest run of consecutive questions, in activity order,
// answered correctly on the first attempt.
func (p SessionProgress) BestStreak() int {
	results := append([]QuestionResult(nil), p.Answered...)
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	best, run, prev := 0, 0, -2
	for _, r := range results {
		if !r.FirstTryCorrect {
			run, prev = 0, r.Index
			continue
		}
		if r.Index == prev+1 {
			run++
		} else {
			run = 1
		}
		prev = r.Index
		if run > best {
			best = run
		}
	}
	return best
}

// Clone returns a deep copy.
func (p SessionProgress) Clone() SessionProgress {
	p.Answered = append([]QuestionResult(nil), p.Answered...)
	return p
}

// ProgressDelta is what one finished attempt adds to the user's records.
type ProgressDelta struct {
	// SubmissionID makes the delta idempotent: stores apply a given id once.
	SubmissionID string
	UserID       string
	Subject      string
	ActivityID   string
	Completed    bool
	Stars        int
	XP           int
	Attempts     int
	Correct      int
	BestStreak   int
	Questions    []QuestionResult
	At           time.Time
}

// NewProgressDelta derives the submission delta of a session.
func NewProgressDelta(userID, subject, activityID string, p SessionProgress, at time.Time) ProgressDelta {
	return ProgressDelta{
		UserID:     userID,
		Subject:    subject,
		ActivityID: activityID,
		Completed:  p.Completed,
		Stars:      p.Stars(),
		XP:         p.XP(),
		Attempts:   p.Attempts,
		Correct:    p.CorrectCount,
		BestStreak: p.BestStreak(),
		Questions:  append([]QuestionResult(nil), p.Answered...),
		At:         at,
	}
}

// Aggregate returns the user-total part of the delta.
func (d ProgressDelta) Aggregate() AggregateDelta {
	return AggregateDelta{SubmissionID: d.SubmissionID, XP: d.XP, Stars: d.Stars, BestStreak: d.BestStreak, At: d.At}
}

// Apply merges a delta into the record: counters add up, questions merge by index.
func (p *ActivityProgress) Apply(d ProgressDelta) {
	p.UserID = d.UserID
	p.Subject = d.Subject
	p.ActivityID = d.ActivityID
	p.Completed = d.Completed
	p.Stars += d.Stars
	p.XP += d.XP
	p.Attempts += d.Attempts
	p.Correct += d.Correct
	p.CompletedAt = d.At
	if p.Questions == nil {
		p.Questions = make(map[string]QuestionRecord, len(d.Questions))
	}
	for _, q := range d.Questions {
		key := strconv.Itoa(q.Index)
		prev := p.Questions[key]
		p.Questions[key] = QuestionRecord{
			Completed:   q.Correct,
			Attempts:    prev.Attempts + q.Attempts,
			LastAttempt: d.At,
		}
	}
}

// OfflineProgressEntry is a submission queued locally until the remote store is reachable.
type OfflineProgressEntry struct {
	SubmissionID string          `json:"submissionId"`
	UserID       string          `json:"userId"`
	ActivityID   string          `json:"atividadeId"`
	Subject      string          `json:"materia"`
	Progress     SessionProgress `json:"progresso"`
	Completed    bool            `json:"concluida"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Key identifies the entry in the offline queue; one entry per user and activity.
func (e OfflineProgressEntry) Key() string {
	return e.UserID + "/" + e.ActivityID
}

// Delta rebuilds the submission the entry stands for.
func (e OfflineProgressEntry) Delta() ProgressDelta {
	p := e.Progress
	p.Completed = e.Completed
	d := NewProgressDelta(e.UserID, e.Subject, e.ActivityID, p, e.Timestamp)
	d.SubmissionID = e.SubmissionID
	return d
}

// ReconcileReport summarises one pass over the offline queue.
type ReconcileReport struct {
	Pending int               `json:"pending"`
	Synced  []string          `json:"synced"`
	Failed  map[string]string `json:"failed,omitempty"`
	Dropped map[string]string `json:"dropped,omitempty"`
}
