package screenpaw

import "context"

// Storage defines the interface for engine persistence.
// All methods use concrete types from this package to avoid import cycles.
// Lookups return (nil, nil) when a record does not exist; the engine maps
// missing records to domain errors where that matters.
type Storage interface {
	// GetGoal retrieves one monitored-app goal by app ID
	GetGoal(ctx context.Context, appID string) (*Goal, error)

	// PutGoal stores or replaces a goal
	PutGoal(ctx context.Context, goal *Goal) error

	// ListGoals retrieves all goals, enabled or not
	ListGoals(ctx context.Context) ([]*Goal, error)

	// GetPlan retrieves the weekly plan for a week-start key
	GetPlan(ctx context.Context, weekStart string) (*WeeklyPlan, error)

	// PutPlan stores or replaces a weekly plan
	PutPlan(ctx context.Context, plan *WeeklyPlan) error

	// ListPlans retrieves all weekly plans ordered by week start, oldest
	// first
	ListPlans(ctx context.Context) ([]*WeeklyPlan, error)

	// GetSnapshot retrieves the accepted usage snapshot for (app, day)
	GetSnapshot(ctx context.Context, appID, day string) (*Snapshot, error)

	// PutSnapshot stores or replaces an accepted snapshot
	PutSnapshot(ctx context.Context, snap *Snapshot) error

	// ListSnapshots retrieves the accepted snapshots of one day
	ListSnapshots(ctx context.Context, day string) ([]*Snapshot, error)

	// GetOutcome retrieves the scoring record for a day
	GetOutcome(ctx context.Context, day string) (*DayOutcome, error)

	// PutOutcome stores a day's scoring record
	PutOutcome(ctx context.Context, outcome *DayOutcome) error

	// ListOutcomes retrieves all day outcomes ordered by day, oldest first
	ListOutcomes(ctx context.Context) ([]*DayOutcome, error)
}

// ReportStore reads the shared, weakly-consistent store written by the
// external measurement process. The engine never writes to it. Readers must
// not cache: the writer may update the store between polls, so every call
// re-reads the backing store.
type ReportStore interface {
	// ReadReport returns the reporter's current figures, or an error when
	// the store is unreadable. An unreadable store is an advisory condition
	// (degraded data), never fatal.
	ReadReport(ctx context.Context) (*SharedReport, error)
}
