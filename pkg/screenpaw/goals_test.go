package screenpaw_test

import (
	"context"
	"testing"
	"time"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
	"github.com/screenpaw/screenpaw/storage/memory"
)

func newTestGoalStore(clock screenpaw.Clock) *screenpaw.GoalStore {
	return screenpaw.NewGoalStore(memory.New(), clock, nil)
}

func TestGoalStore_AddGoal(t *testing.T) {
	clock := newFakeClock(monday)
	goals := newTestGoalStore(clock)
	ctx := context.Background()

	goal, err := goals.AddGoal(ctx, "instagram", "Instagram", 60)
	if err != nil {
		t.Fatalf("AddGoal failed: %v", err)
	}
	if goal.DailyLimitMinutes != 60 || !goal.Enabled {
		t.Errorf("Unexpected goal: %+v", goal)
	}

	if _, err := goals.AddGoal(ctx, "instagram", "Instagram again", 30); err != screenpaw.ErrDuplicateApp {
		t.Errorf("Expected ErrDuplicateApp, got %v", err)
	}
	if _, err := goals.AddGoal(ctx, "mail", "Mail", 0); err != screenpaw.ErrInvalidLimit {
		t.Errorf("Expected ErrInvalidLimit for zero limit, got %v", err)
	}
	if _, err := goals.AddGoal(ctx, "", "Nameless", 30); err != screenpaw.ErrUnknownApp {
		t.Errorf("Expected ErrUnknownApp for empty ID, got %v", err)
	}
}

func TestGoalStore_ExtendLimitMonotonicPerDay(t *testing.T) {
	clock := newFakeClock(monday)
	goals := newTestGoalStore(clock)
	ctx := context.Background()

	if _, err := goals.AddGoal(ctx, "instagram", "Instagram", 60); err != nil {
		t.Fatalf("AddGoal failed: %v", err)
	}

	// Matching or lowering the limit in force is rejected
	if _, err := goals.ExtendLimit(ctx, "instagram", 60); err != screenpaw.ErrLimitNotIncreasing {
		t.Errorf("Expected ErrLimitNotIncreasing for 60, got %v", err)
	}
	if _, err := goals.ExtendLimit(ctx, "instagram", 30); err != screenpaw.ErrLimitNotIncreasing {
		t.Errorf("Expected ErrLimitNotIncreasing for 30, got %v", err)
	}

	goal, err := goals.ExtendLimit(ctx, "instagram", 90)
	if err != nil {
		t.Fatalf("ExtendLimit failed: %v", err)
	}
	today := screenpaw.DayKey(monday)
	if got := goal.EffectiveLimit(today); got != 90 {
		t.Errorf("Expected effective limit 90 today, got %d", got)
	}
	if goal.DailyLimitMinutes != 60 {
		t.Errorf("Expected base limit untouched, got %d", goal.DailyLimitMinutes)
	}

	// Within the day the extended limit is the floor for further extensions
	if _, err := goals.ExtendLimit(ctx, "instagram", 80); err != screenpaw.ErrLimitNotIncreasing {
		t.Errorf("Expected ErrLimitNotIncreasing for 80 after 90, got %v", err)
	}

	// The extension lapses at rollover; 80 is valid against the base again
	clock.Advance(24 * time.Hour)
	if _, err := goals.ExtendLimit(ctx, "instagram", 80); err != nil {
		t.Errorf("Expected extension from base on the new day, got %v", err)
	}
}

func TestGoalStore_DisableGoal(t *testing.T) {
	clock := newFakeClock(monday)
	goals := newTestGoalStore(clock)
	ctx := context.Background()

	if _, err := goals.AddGoal(ctx, "instagram", "Instagram", 60); err != nil {
		t.Fatalf("AddGoal failed: %v", err)
	}
	if _, err := goals.AddGoal(ctx, "mail", "Mail", 120); err != nil {
		t.Fatalf("AddGoal failed: %v", err)
	}

	if err := goals.DisableGoal(ctx, "instagram"); err != nil {
		t.Fatalf("DisableGoal failed: %v", err)
	}
	// Disabling twice is a no-op
	if err := goals.DisableGoal(ctx, "instagram"); err != nil {
		t.Fatalf("Second DisableGoal failed: %v", err)
	}
	if err := goals.DisableGoal(ctx, "ghost"); err != screenpaw.ErrUnknownApp {
		t.Errorf("Expected ErrUnknownApp, got %v", err)
	}

	active, err := goals.ListActiveGoals(ctx)
	if err != nil {
		t.Fatalf("ListActiveGoals failed: %v", err)
	}
	if len(active) != 1 || active[0].AppID != "mail" {
		t.Errorf("Expected only mail active, got %+v", active)
	}

	// Disabled goals are still retrievable, not deleted
	goal, err := goals.Goal(ctx, "instagram")
	if err != nil {
		t.Fatalf("Goal failed: %v", err)
	}
	if goal.Enabled {
		t.Error("Expected instagram to be disabled")
	}
}
