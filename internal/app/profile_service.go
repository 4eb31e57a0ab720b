package app

import (
	"context"
	"fmt"

	"histosaga-service/internal/domain"
)

// Profile is the learner's standing.
type Profile struct {
	UserID        string                     `json:"userId"`
	Name          string                     `json:"nome"`
	Username      string                     `json:"usuario"`
	XP            int                        `json:"xp"`
	Stars         int                        `json:"estrelas"`
	Streak        int                        `json:"streak"`
	Level         int                        `json:"level"`
	LevelProgress int                        `json:"levelProgress"`
	XPPerLevel    int                        `json:"xpPerLevel"`
	Achievements  []domain.AchievementStatus `json:"achievements"`
}

// ProfileService reads progression views built from remote records.
type ProfileService struct {
	users      UserStore
	progress   ProgressStore
	activities *ActivityRepository
}

func NewProfileService(users UserStore, progress ProgressStore, activities *ActivityRepository) *ProfileService {
	return &ProfileService{users: users, progress: progress, activities: activities}
}

func (s *ProfileService) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	agg := user.UserAggregate
	return Profile{
		UserID:        user.ID,
		Name:          user.Name,
		Username:      user.Username,
		XP:            agg.XP,
		Stars:         agg.Stars,
		Streak:        agg.Streak,
		Level:         domain.Level(agg.XP),
		LevelProgress: domain.LevelProgress(agg.XP),
		XPPerLevel:    domain.XPPerLevel,
		Achievements:  domain.EvaluateAchievements(agg),
	}, nil
}

// Activities lists a subject's activities in order with the user's lock state.
func (s *ProfileService) Activities(ctx context.Context, userID, subject string) ([]domain.ActivityStatus, error) {
	activities, err := s.activities.ListActivities(ctx, subject)
	if err != nil {
		return nil, err
	}
	records, err := s.progress.ListProgress(ctx, userID, subject)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	summaries := make([]domain.ActivitySummary, len(activities))
	for i, a := range activities {
		summaries[i] = a.Summary()
	}
	return domain.UnlockStatus(summaries, records), nil
}
