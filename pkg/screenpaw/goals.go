package screenpaw

import (
	"context"
	"fmt"
)

// GoalStore owns the catalog of monitored apps. Goals are never deleted
// mid-day; they are disabled instead.
type GoalStore struct {
	storage Storage
	clock   Clock
	logger  Logger
}

// NewGoalStore creates a goal store over the given persistence
func NewGoalStore(storage Storage, clock Clock, logger Logger) *GoalStore {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &GoalStore{storage: storage, clock: clock, logger: logger}
}

// AddGoal registers an app for monitoring with a daily limit in minutes
func (s *GoalStore) AddGoal(ctx context.Context, appID, name string, limitMinutes int) (*Goal, error) {
	if appID == "" {
		return nil, ErrUnknownApp
	}
	if limitMinutes <= 0 {
		return nil, ErrInvalidLimit
	}

	existing, err := s.storage.GetGoal(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up goal: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateApp
	}

	now := s.clock.Now()
	goal := &Goal{
		AppID:             appID,
		DisplayName:       name,
		DailyLimitMinutes: limitMinutes,
		Enabled:           true,
		CreatedAt:         now,
		LastModifiedAt:    now,
	}
	if err := s.storage.PutGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to store goal: %w", err)
	}

	s.logger.Info("goal added",
		Field{Key: "app_id", Value: appID},
		Field{Key: "limit_minutes", Value: limitMinutes})
	return goal, nil
}

// Goal retrieves a monitored app by ID
func (s *GoalStore) Goal(ctx context.Context, appID string) (*Goal, error) {
	goal, err := s.storage.GetGoal(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up goal: %w", err)
	}
	if goal == nil {
		return nil, ErrUnknownApp
	}
	return goal, nil
}

// ListActiveGoals retrieves all enabled goals
func (s *GoalStore) ListActiveGoals(ctx context.Context) ([]*Goal, error) {
	goals, err := s.storage.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	active := make([]*Goal, 0, len(goals))
	for _, g := range goals {
		if g.Enabled {
			active = append(active, g)
		}
	}
	return active, nil
}

// ExtendLimit raises the app's effective limit for today only. Extensions
// are monotonic within a day: the new limit must exceed the limit currently
// in force. At day rollover the base limit is in force again, so a new
// extension may start from the base.
func (s *GoalStore) ExtendLimit(ctx context.Context, appID string, newLimitMinutes int) (*Goal, error) {
	goal, err := s.Goal(ctx, appID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := DayKey(now)
	if newLimitMinutes <= goal.EffectiveLimit(today) {
		return nil, ErrLimitNotIncreasing
	}

	goal.ExtendedLimitMinutes = newLimitMinutes
	goal.ExtendedOn = today
	goal.LastModifiedAt = now
	if err := s.storage.PutGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to store goal: %w", err)
	}

	s.logger.Info("limit extended",
		Field{Key: "app_id", Value: appID},
		Field{Key: "new_limit_minutes", Value: newLimitMinutes},
		Field{Key: "day", Value: today})
	return goal, nil
}

// DisableGoal stops monitoring an app without deleting its history
func (s *GoalStore) DisableGoal(ctx context.Context, appID string) error {
	goal, err := s.Goal(ctx, appID)
	if err != nil {
		return err
	}
	if !goal.Enabled {
		return nil
	}

	goal.Enabled = false
	goal.LastModifiedAt = s.clock.Now()
	if err := s.storage.PutGoal(ctx, goal); err != nil {
		return fmt.Errorf("failed to store goal: %w", err)
	}

	s.logger.Info("goal disabled", Field{Key: "app_id", Value: appID})
	return nil
}
