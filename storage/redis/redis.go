// Package redis provides a Redis implementation of the screenpaw.Storage
// interface, plus a reader for a reporter that publishes its shared store
// through Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// Storage implements screenpaw.Storage using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all engine keys (default: "screenpaw:")
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{KeyPrefix: "screenpaw:"}
}

// New creates a new Redis storage adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "screenpaw:"
	}
	return &Storage{client: client, config: config}, nil
}

func (s *Storage) goalKey(appID string) string {
	return s.config.KeyPrefix + "goal:" + appID
}

func (s *Storage) planKey(weekStart string) string {
	return s.config.KeyPrefix + "plan:" + weekStart
}

func (s *Storage) snapshotKey(appID, day string) string {
	return s.config.KeyPrefix + "snap:" + day + ":" + appID
}

func (s *Storage) outcomeKey(day string) string {
	return s.config.KeyPrefix + "outcome:" + day
}

// getJSON reads a key into dst, reporting (false, nil) when the key is absent
func (s *Storage) getJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Storage) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// scanJSON collects every value matching the pattern into out via decode
func (s *Storage) scanJSON(ctx context.Context, pattern string, decode func([]byte) error) error {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", iter.Val(), err)
		}
		if err := decode(data); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// GetGoal implements screenpaw.Storage
func (s *Storage) GetGoal(ctx context.Context, appID string) (*screenpaw.Goal, error) {
	var goal screenpaw.Goal
	ok, err := s.getJSON(ctx, s.goalKey(appID), &goal)
	if err != nil || !ok {
		return nil, err
	}
	return &goal, nil
}

// PutGoal implements screenpaw.Storage
func (s *Storage) PutGoal(ctx context.Context, goal *screenpaw.Goal) error {
	if goal == nil || goal.AppID == "" {
		return fmt.Errorf("invalid goal")
	}
	return s.setJSON(ctx, s.goalKey(goal.AppID), goal)
}

// ListGoals implements screenpaw.Storage
func (s *Storage) ListGoals(ctx context.Context) ([]*screenpaw.Goal, error) {
	var goals []*screenpaw.Goal
	err := s.scanJSON(ctx, s.config.KeyPrefix+"goal:*", func(data []byte) error {
		var goal screenpaw.Goal
		if err := json.Unmarshal(data, &goal); err != nil {
			return fmt.Errorf("failed to decode goal: %w", err)
		}
		goals = append(goals, &goal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortGoals(goals)
	return goals, nil
}

// GetPlan implements screenpaw.Storage
func (s *Storage) GetPlan(ctx context.Context, weekStart string) (*screenpaw.WeeklyPlan, error) {
	var plan screenpaw.WeeklyPlan
	ok, err := s.getJSON(ctx, s.planKey(weekStart), &plan)
	if err != nil || !ok {
		return nil, err
	}
	return &plan, nil
}

// PutPlan implements screenpaw.Storage
func (s *Storage) PutPlan(ctx context.Context, plan *screenpaw.WeeklyPlan) error {
	if plan == nil || plan.WeekStart == "" {
		return fmt.Errorf("invalid plan")
	}
	return s.setJSON(ctx, s.planKey(plan.WeekStart), plan)
}

// ListPlans implements screenpaw.Storage
func (s *Storage) ListPlans(ctx context.Context) ([]*screenpaw.WeeklyPlan, error) {
	var plans []*screenpaw.WeeklyPlan
	err := s.scanJSON(ctx, s.config.KeyPrefix+"plan:*", func(data []byte) error {
		var plan screenpaw.WeeklyPlan
		if err := json.Unmarshal(data, &plan); err != nil {
			return fmt.Errorf("failed to decode plan: %w", err)
		}
		plans = append(plans, &plan)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortPlans(plans)
	return plans, nil
}

// GetSnapshot implements screenpaw.Storage
func (s *Storage) GetSnapshot(ctx context.Context, appID, day string) (*screenpaw.Snapshot, error) {
	var snap screenpaw.Snapshot
	ok, err := s.getJSON(ctx, s.snapshotKey(appID, day), &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// PutSnapshot implements screenpaw.Storage
func (s *Storage) PutSnapshot(ctx context.Context, snap *screenpaw.Snapshot) error {
	if snap == nil || snap.AppID == "" || snap.Day == "" {
		return fmt.Errorf("invalid snapshot")
	}
	return s.setJSON(ctx, s.snapshotKey(snap.AppID, snap.Day), snap)
}

// ListSnapshots implements screenpaw.Storage
func (s *Storage) ListSnapshots(ctx context.Context, day string) ([]*screenpaw.Snapshot, error) {
	var snaps []*screenpaw.Snapshot
	err := s.scanJSON(ctx, s.config.KeyPrefix+"snap:"+day+":*", func(data []byte) error {
		var snap screenpaw.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSnapshots(snaps)
	return snaps, nil
}

// GetOutcome implements screenpaw.Storage
func (s *Storage) GetOutcome(ctx context.Context, day string) (*screenpaw.DayOutcome, error) {
	var outcome screenpaw.DayOutcome
	ok, err := s.getJSON(ctx, s.outcomeKey(day), &outcome)
	if err != nil || !ok {
		return nil, err
	}
	return &outcome, nil
}

// PutOutcome implements screenpaw.Storage
func (s *Storage) PutOutcome(ctx context.Context, outcome *screenpaw.DayOutcome) error {
	if outcome == nil || outcome.Day == "" {
		return fmt.Errorf("invalid outcome")
	}
	return s.setJSON(ctx, s.outcomeKey(outcome.Day), outcome)
}

// ListOutcomes implements screenpaw.Storage
func (s *Storage) ListOutcomes(ctx context.Context) ([]*screenpaw.DayOutcome, error) {
	var outcomes []*screenpaw.DayOutcome
	err := s.scanJSON(ctx, s.config.KeyPrefix+"outcome:*", func(data []byte) error {
		var outcome screenpaw.DayOutcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			return fmt.Errorf("failed to decode outcome: %w", err)
		}
		outcomes = append(outcomes, &outcome)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortOutcomes(outcomes)
	return outcomes, nil
}
