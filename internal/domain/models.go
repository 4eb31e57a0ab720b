package domain

import (
	"time"

	"histosaga-service/internal/question"
)

// Activity is a named, ordered set of questions on one historical topic.
type Activity struct {
	ID        string              `json:"id" bson:"_id"`
	Subject   string              `json:"materia" bson:"materia"`
	Title     string              `json:"titulo" bson:"titulo"`
	Content   string              `json:"conteudo,omitempty" bson:"conteudo,omitempty"`
	Position  int                 `json:"posicao" bson:"posicao"`
	Questions []question.Question `json:"questoes" bson:"questoes"`
}

// Summary drops the questions.
func (a Activity) Summary() ActivitySummary {
	return ActivitySummary{
		ID:            a.ID,
		Subject:       a.Subject,
		Title:         a.Title,
		Content:       a.Content,
		Position:      a.Position,
		QuestionCount: len(a.Questions),
	}
}

// ActivitySummary is what listings show.
type ActivitySummary struct {
	ID            string `json:"id"`
	Subject       string `json:"subject"`
	Title         string `json:"title"`
	Content       string `json:"content,omitempty"`
	Position      int    `json:"position"`
	QuestionCount int    `json:"questionCount"`
}

// CachedActivity is the offline copy of an activity definition.
type CachedActivity struct {
	Activity Activity  `json:"activity"`
	CachedAt time.Time `json:"cachedAt"`
}

// QuestionRecord is the persisted per-question state of an activity progress record.
type QuestionRecord struct {
	Completed   bool      `json:"concluida" bson:"concluida"`
	Attempts    int       `json:"tentativas" bson:"tentativas"`
	LastAttempt time.Time `json:"ultimaTentativa" bson:"ultimaTentativa"`
}

// ActivityProgress is the cross-session record of one user on one activity.
type ActivityProgress struct {
	UserID      string                    `json:"userId" bson:"userId"`
	Subject     string                    `json:"materia" bson:"materia"`
	ActivityID  string                    `json:"atividadeId" bson:"atividadeId"`
	Completed   bool                      `json:"concluida" bson:"concluida"`
	Stars       int                       `json:"estrelas" bson:"estrelas"`
	XP          int                       `json:"xp" bson:"xp"`
	Attempts    int                       `json:"tentativas" bson:"tentativas"`
	Correct     int                       `json:"acertos" bson:"acertos"`
	CompletedAt time.Time                 `json:"dataConclusao" bson:"dataConclusao"`
	Questions   map[string]QuestionRecord `json:"questoes" bson:"questoes"`
}

// UserAggregate holds the totals advanced by activity submissions and logins.
type UserAggregate struct {
	XP            int       `json:"xp" bson:"xp"`
	Stars         int       `json:"estrelas" bson:"estrelas"`
	Streak        int       `json:"streak" bson:"streak"`
	FirstActivity bool      `json:"primeiraAtividade" bson:"primeiraAtividade"`
	BestStreak    int       `json:"maiorSequenciaAcertos" bson:"maiorSequenciaAcertos"`
	LastAccess    time.Time `json:"ultimoAcesso,omitempty" bson:"ultimoAcesso,omitempty"`
	LastLogin     time.Time `json:"ultimoLogin,omitempty" bson:"ultimoLogin,omitempty"`
}

// Apply folds a submission delta into the aggregate.
func (a *UserAggregate) Apply(d AggregateDelta) {
	a.XP += d.XP
	a.Stars += d.Stars
	if d.BestStreak > a.BestStreak {
		a.BestStreak = d.BestStreak
	}
	a.FirstActivity = true
	a.LastLogin = d.At
}

// AggregateDelta is what a submission proposes to add to the user aggregate.
type AggregateDelta struct {
	SubmissionID string
	XP           int
	Stars        int
	BestStreak   int
	At           time.Time
}

// Empty reports whether the delta would change no totals.
func (d AggregateDelta) Empty() bool {
	return d.XP == 0 && d.Stars == 0
}

// User is a registered learner.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"nome" bson:"nome"`
	Age          string    `json:"idade,omitempty" bson:"idade,omitempty"`
	Phone        string    `json:"telefone,omitempty" bson:"telefone,omitempty"`
	Email        string    `json:"email" bson:"email"`
	Username     string    `json:"usuario" bson:"usuario"`
	PasswordHash string    `json:"-" bson:"senha"`
	CreatedAt    time.Time `json:"dataCriacao" bson:"dataCriacao"`

	UserAggregate `bson:",inline"`
}

// UserUpdate lists the user fields account flows may change. Nil fields are left untouched.
type UserUpdate struct {
	PasswordHash *string
	Streak       *int
	LastAccess   *time.Time
	LastLogin    *time.Time
}

// ResetCode is a pending password reset verification.
type ResetCode struct {
	UserID    string    `json:"userId" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	Code      string    `json:"codigo" bson:"codigo"`
	ExpiresAt time.Time `json:"expiracao" bson:"expiracao"`
	Attempts  int       `json:"tentativas" bson:"tentativas"`
	Used      bool      `json:"usado" bson:"usado"`
}
