// Package postgres provides a PostgreSQL implementation of the
// screenpaw.Storage interface using pgx connection pooling. Transactions
// and outcome app lists are stored as JSONB; everything else is columnar.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// Storage implements screenpaw.Storage using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{pool: pool, config: config}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool
func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS screenpaw_goals (
			app_id           TEXT PRIMARY KEY,
			display_name     TEXT NOT NULL,
			daily_limit      INT NOT NULL,
			extended_limit   INT NOT NULL DEFAULT 0,
			extended_on      TEXT NOT NULL DEFAULT '',
			enabled          BOOLEAN NOT NULL DEFAULT TRUE,
			created_at       TIMESTAMPTZ NOT NULL,
			last_modified_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS screenpaw_plans (
			week_start        TEXT PRIMARY KEY,
			credits_remaining INT NOT NULL,
			failure_count     INT NOT NULL,
			fee_paid_on       TEXT NOT NULL DEFAULT '',
			transactions      JSONB NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS screenpaw_snapshots (
			app_id           TEXT NOT NULL,
			day              TEXT NOT NULL,
			minutes_used     INT NOT NULL,
			source           TEXT NOT NULL,
			source_timestamp TIMESTAMPTZ NOT NULL,
			degraded         BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (app_id, day)
		);

		CREATE TABLE IF NOT EXISTS screenpaw_outcomes (
			day             TEXT PRIMARY KEY,
			failed          BOOLEAN NOT NULL,
			over_limit_apps JSONB NOT NULL DEFAULT '[]',
			evaluated_at    TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetGoal implements screenpaw.Storage
func (s *Storage) GetGoal(ctx context.Context, appID string) (*screenpaw.Goal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT app_id, display_name, daily_limit, extended_limit, extended_on,
		       enabled, created_at, last_modified_at
		FROM screenpaw_goals WHERE app_id = $1`, appID)
	return scanGoal(row)
}

// PutGoal implements screenpaw.Storage
func (s *Storage) PutGoal(ctx context.Context, goal *screenpaw.Goal) error {
	if goal == nil || goal.AppID == "" {
		return fmt.Errorf("invalid goal")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO screenpaw_goals
			(app_id, display_name, daily_limit, extended_limit, extended_on,
			 enabled, created_at, last_modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (app_id) DO UPDATE SET
			display_name     = EXCLUDED.display_name,
			daily_limit      = EXCLUDED.daily_limit,
			extended_limit   = EXCLUDED.extended_limit,
			extended_on      = EXCLUDED.extended_on,
			enabled          = EXCLUDED.enabled,
			last_modified_at = EXCLUDED.last_modified_at`,
		goal.AppID, goal.DisplayName, goal.DailyLimitMinutes,
		goal.ExtendedLimitMinutes, goal.ExtendedOn, goal.Enabled,
		goal.CreatedAt, goal.LastModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to store goal: %w", err)
	}
	return nil
}

// ListGoals implements screenpaw.Storage
func (s *Storage) ListGoals(ctx context.Context) ([]*screenpaw.Goal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT app_id, display_name, daily_limit, extended_limit, extended_on,
		       enabled, created_at, last_modified_at
		FROM screenpaw_goals ORDER BY app_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*screenpaw.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}

// GetPlan implements screenpaw.Storage
func (s *Storage) GetPlan(ctx context.Context, weekStart string) (*screenpaw.WeeklyPlan, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT week_start, credits_remaining, failure_count, fee_paid_on, transactions
		FROM screenpaw_plans WHERE week_start = $1`, weekStart)
	return scanPlan(row)
}

// PutPlan implements screenpaw.Storage
func (s *Storage) PutPlan(ctx context.Context, plan *screenpaw.WeeklyPlan) error {
	if plan == nil || plan.WeekStart == "" {
		return fmt.Errorf("invalid plan")
	}
	txs, err := json.Marshal(plan.Transactions)
	if err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO screenpaw_plans
			(week_start, credits_remaining, failure_count, fee_paid_on, transactions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (week_start) DO UPDATE SET
			credits_remaining = EXCLUDED.credits_remaining,
			failure_count     = EXCLUDED.failure_count,
			fee_paid_on       = EXCLUDED.fee_paid_on,
			transactions      = EXCLUDED.transactions`,
		plan.WeekStart, plan.CreditsRemaining, plan.FailureCount,
		plan.FeePaidOn, txs)
	if err != nil {
		return fmt.Errorf("failed to store plan: %w", err)
	}
	return nil
}

// ListPlans implements screenpaw.Storage
func (s *Storage) ListPlans(ctx context.Context) ([]*screenpaw.WeeklyPlan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT week_start, credits_remaining, failure_count, fee_paid_on, transactions
		FROM screenpaw_plans ORDER BY week_start`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*screenpaw.WeeklyPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// GetSnapshot implements screenpaw.Storage
func (s *Storage) GetSnapshot(ctx context.Context, appID, day string) (*screenpaw.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT app_id, day, minutes_used, source, source_timestamp, degraded
		FROM screenpaw_snapshots WHERE app_id = $1 AND day = $2`, appID, day)
	return scanSnapshot(row)
}

// PutSnapshot implements screenpaw.Storage
func (s *Storage) PutSnapshot(ctx context.Context, snap *screenpaw.Snapshot) error {
	if snap == nil || snap.AppID == "" || snap.Day == "" {
		return fmt.Errorf("invalid snapshot")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO screenpaw_snapshots
			(app_id, day, minutes_used, source, source_timestamp, degraded)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (app_id, day) DO UPDATE SET
			minutes_used     = EXCLUDED.minutes_used,
			source           = EXCLUDED.source,
			source_timestamp = EXCLUDED.source_timestamp,
			degraded         = EXCLUDED.degraded`,
		snap.AppID, snap.Day, snap.MinutesUsed, string(snap.Source),
		snap.SourceTimestamp, snap.Degraded)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// ListSnapshots implements screenpaw.Storage
func (s *Storage) ListSnapshots(ctx context.Context, day string) ([]*screenpaw.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT app_id, day, minutes_used, source, source_timestamp, degraded
		FROM screenpaw_snapshots WHERE day = $1 ORDER BY app_id`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*screenpaw.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// GetOutcome implements screenpaw.Storage
func (s *Storage) GetOutcome(ctx context.Context, day string) (*screenpaw.DayOutcome, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT day, failed, over_limit_apps, evaluated_at
		FROM screenpaw_outcomes WHERE day = $1`, day)
	return scanOutcome(row)
}

// PutOutcome implements screenpaw.Storage
func (s *Storage) PutOutcome(ctx context.Context, outcome *screenpaw.DayOutcome) error {
	if outcome == nil || outcome.Day == "" {
		return fmt.Errorf("invalid outcome")
	}
	apps, err := json.Marshal(outcome.OverLimitApps)
	if err != nil {
		return fmt.Errorf("failed to encode app list: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO screenpaw_outcomes (day, failed, over_limit_apps, evaluated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day) DO UPDATE SET
			failed          = EXCLUDED.failed,
			over_limit_apps = EXCLUDED.over_limit_apps,
			evaluated_at    = EXCLUDED.evaluated_at`,
		outcome.Day, outcome.Failed, apps, outcome.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("failed to store outcome: %w", err)
	}
	return nil
}

// ListOutcomes implements screenpaw.Storage
func (s *Storage) ListOutcomes(ctx context.Context) ([]*screenpaw.DayOutcome, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, failed, over_limit_apps, evaluated_at
		FROM screenpaw_outcomes ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*screenpaw.DayOutcome
	for rows.Next() {
		outcome, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

func scanGoal(row pgx.Row) (*screenpaw.Goal, error) {
	var goal screenpaw.Goal
	err := row.Scan(&goal.AppID, &goal.DisplayName, &goal.DailyLimitMinutes,
		&goal.ExtendedLimitMinutes, &goal.ExtendedOn, &goal.Enabled,
		&goal.CreatedAt, &goal.LastModifiedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}
	return &goal, nil
}

func scanPlan(row pgx.Row) (*screenpaw.WeeklyPlan, error) {
	var plan screenpaw.WeeklyPlan
	var txs []byte
	err := row.Scan(&plan.WeekStart, &plan.CreditsRemaining,
		&plan.FailureCount, &plan.FeePaidOn, &txs)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	if err := json.Unmarshal(txs, &plan.Transactions); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return &plan, nil
}

func scanSnapshot(row pgx.Row) (*screenpaw.Snapshot, error) {
	var snap screenpaw.Snapshot
	var source string
	err := row.Scan(&snap.AppID, &snap.Day, &snap.MinutesUsed, &source,
		&snap.SourceTimestamp, &snap.Degraded)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.Source = screenpaw.Source(source)
	return &snap, nil
}

func scanOutcome(row pgx.Row) (*screenpaw.DayOutcome, error) {
	var outcome screenpaw.DayOutcome
	var apps []byte
	err := row.Scan(&outcome.Day, &outcome.Failed, &apps, &outcome.EvaluatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}
	if err := json.Unmarshal(apps, &outcome.OverLimitApps); err != nil {
		return nil, fmt.Errorf("failed to decode app list: %w", err)
	}
	return &outcome, nil
}
