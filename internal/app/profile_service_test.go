package app_test

import (
	"context"
	"testing"

	"histosaga-service/internal/app"
	"histosaga-service/internal/domain"
)

func TestProfileAndUnlocks(t *testing.T) {
	ctx := context.Background()
	first := threeQuestionActivity("a1")
	second := threeQuestionActivity("a2")
	second.Position = 2
	third := threeQuestionActivity("a3")
	third.Position = 3
	f := newFixture(third, first, second)
	_ = f.remote.CreateUser(ctx, domain.User{ID: "u1", Name: "Ana", UserAggregate: domain.UserAggregate{XP: 990}})

	finishActivity(t, f, "u1", "a1")

	profiles := app.NewProfileService(f.remote, f.remote, f.activities)
	statuses, err := profiles.Activities(ctx, "u1", "historia")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(statuses) != 3 || statuses[0].ID != "a1" || statuses[2].ID != "a3" {
		t.Fatalf("expected activities ordered by position, got %+v", statuses)
	}
	if !statuses[0].Completed || statuses[1].Locked || !statuses[2].Locked {
		t.Fatalf("unexpected lock states %+v", statuses)
	}

	profile, err := profiles.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.XP != 1020 || profile.Level != 2 || profile.LevelProgress != 20 || profile.Stars != 1 {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if !profile.Achievements[0].Unlocked {
		t.Fatalf("expected first-activity achievement unlocked")
	}
}
