package domain

import "time"

// XPPerLevel is the experience needed to advance one level.
const XPPerLevel = 1000

// Level starts at 1 and grows every XPPerLevel points.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// LevelProgress is the experience accumulated inside the current level.
func LevelProgress(xp int) int {
	if xp < 0 {
		return 0
	}
	return xp % XPPerLevel
}

// NextStreak computes the daily streak after an access at now. Days are UTC
// calendar dates: an access on the day after the last one extends the streak,
// a second access on the same day keeps it, anything else restarts it.
func NextStreak(current int, lastAccess, now time.Time) int {
	if lastAccess.IsZero() {
		return 1
	}
	today := calendarDay(now)
	last := calendarDay(lastAccess)
	switch {
	case last.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case last.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AchievementKind selects the user statistic an achievement tracks.
type AchievementKind string

const (
	AchievementFirstActivity AchievementKind = "primeiraAtividade"
	AchievementStreak        AchievementKind = "streak"
	AchievementStars         AchievementKind = "estrelas"
	AchievementLevel         AchievementKind = "level"
	AchievementPerformance   AchievementKind = "desempenho"
)

// Achievement is a catalog entry.
type Achievement struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        AchievementKind `json:"kind"`
	Goal        int             `json:"goal"`
}

// AchievementStatus is an achievement evaluated for one user.
type AchievementStatus struct {
	Achievement
	Progress int  `json:"progress"`
	Unlocked bool `json:"unlocked"`
}

// Achievements is the fixed catalog.
var Achievements = []Achievement{
	{ID: 1, Name: "Primeiros Passos", Description: "Complete sua primeira atividade", Kind: AchievementFirstActivity, Goal: 1},
	{ID: 2, Name: "Estudante Dedicado", Description: "Mantenha uma sequência de 7 dias", Kind: AchievementStreak, Goal: 7},
	{ID: 3, Name: "Mestre dos Estudos", Description: "Mantenha uma sequência de 30 dias", Kind: AchievementStreak, Goal: 30},
	{ID: 4, Name: "Viciado em Conhecimento", Description: "Mantenha uma sequência de 100 dias", Kind: AchievementStreak, Goal: 100},
	{ID: 5, Name: "Colecionador", Description: "Ganhe 50 estrelas", Kind: AchievementStars, Goal: 50},
	{ID: 6, Name: "Caçador de Estrelas", Description: "Ganhe 100 estrelas", Kind: AchievementStars, Goal: 100},
	{ID: 7, Name: "Expert", Description: "Alcance o nível 10", Kind: AchievementLevel, Goal: 10},
	{ID: 8, Name: "Lenda", Description: "Alcance o nível 25", Kind: AchievementLevel, Goal: 25},
	{ID: 9, Name: "Perfeição", Description: "Acerte 10 questões seguidas", Kind: AchievementPerformance, Goal: 10},
	{ID: 10, Name: "Impecável", Description: "Acerte 20 questões seguidas", Kind: AchievementPerformance, Goal: 20},
}

// EvaluateAchievements scores the catalog against a user's totals.
func EvaluateAchievements(a UserAggregate) []AchievementStatus {
	out := make([]AchievementStatus, 0, len(Achievements))
	for _, ach := range Achievements {
		var value int
		switch ach.Kind {
		case AchievementFirstActivity:
			if a.FirstActivity {
				value = 1
			}
		case AchievementStreak:
			value = a.Streak
		case AchievementStars:
			value = a.Stars
		case AchievementLevel:
			value = Level(a.XP)
		case AchievementPerformance:
			value = a.BestStreak
		}
		progress := min(value, ach.Goal)
		out = append(out, AchievementStatus{
			Achievement: ach,
			Progress:    progress,
			Unlocked:    progress >= ach.Goal,
		})
	}
	return out
}

// ActivityStatus is an activity listing entry with the user's state on it.
type ActivityStatus struct {
	ActivitySummary
	Locked    bool `json:"locked"`
	Completed bool `json:"completed"`
	Stars     int  `json:"stars"`
}

// UnlockStatus marks activities, given in position order, as locked or not:
// the first is always open, every other one opens once its predecessor is completed.
func UnlockStatus(activities []ActivitySummary, progress map[string]ActivityProgress) []ActivityStatus {
	out := make([]ActivityStatus, len(activities))
	for i, a := range activities {
		p, ok := progress[a.ID]
		out[i] = ActivityStatus{
			ActivitySummary: a,
			Completed:       ok && p.Completed,
			Stars:           p.Stars,
		}
		if i > 0 {
			out[i].Locked = !out[i-1].Completed
		}
	}
	return out
}
