package screenpaw

import (
	"context"
	"time"
)

// Source identifies which side produced a usage figure
type Source string

const (
	// SourceLocalEstimate is the in-process running estimate, kept only so
	// consumers have something to show before the external reporter writes
	SourceLocalEstimate Source = "local-estimate"
	// SourceExternalReport is the authoritative figure written by the
	// sandboxed measurement process
	SourceExternalReport Source = "external-report"
)

// Reason classifies a credit transaction
type Reason string

const (
	// ReasonWeeklyGrant is the opening grant that seeds a new weekly plan
	ReasonWeeklyGrant Reason = "weekly-grant"
	// ReasonOverLimitPenalty is charged once per failed day
	ReasonOverLimitPenalty Reason = "over-limit-penalty"
	// ReasonExtensionFee is charged when a daily limit is raised
	ReasonExtensionFee Reason = "extension-fee"
	// ReasonUnblockFee is charged to regain access to a blocked app
	ReasonUnblockFee Reason = "unblock-fee"
	// ReasonAccountabilityRestore restores the balance to the weekly grant
	ReasonAccountabilityRestore Reason = "accountability-fee-restore"
	// ReasonManualGrant is an operator-issued credit adjustment
	ReasonManualGrant Reason = "manual-grant"
)

// BlockingState is the enforcement status of one app for the current day.
// It is always recomputed from usage, limits and the ledger, never stored.
type BlockingState string

const (
	// StateActive means usage is comfortably under the limit
	StateActive BlockingState = "active"
	// StateNearLimit means usage has crossed the warning ratio of the limit
	StateNearLimit BlockingState = "near-limit"
	// StateOverLimitBlocked means usage reached the limit; sticky for the day
	StateOverLimitBlocked BlockingState = "over-limit-blocked"
	// StateUnblockedPaid means a credit was spent to lift the block; terminal
	// for the day
	StateUnblockedPaid BlockingState = "unblocked-paid"
	// StateExtendedActive means the limit was raised today and usage is under
	// the new limit
	StateExtendedActive BlockingState = "extended-active"
)

// Goal is one monitored app with its configured daily limit.
// The base limit never changes mid-day; an extension raises the effective
// limit for a single day and lapses at day rollover.
type Goal struct {
	AppID             string
	DisplayName       string
	DailyLimitMinutes int

	// ExtendedLimitMinutes applies only on the day named by ExtendedOn
	ExtendedLimitMinutes int
	ExtendedOn           string

	Enabled        bool
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// EffectiveLimit returns the limit in force for the given day key
func (g *Goal) EffectiveLimit(day string) int {
	if g.ExtendedOn == day && g.ExtendedLimitMinutes > g.DailyLimitMinutes {
		return g.ExtendedLimitMinutes
	}
	return g.DailyLimitMinutes
}

// Snapshot is the accepted usage figure for one app on one day.
// The accepted value is monotonically non-decreasing within a day.
type Snapshot struct {
	AppID           string
	Day             string
	MinutesUsed     int
	Source          Source
	SourceTimestamp time.Time
	Degraded        bool
}

// Transaction is one append-only ledger entry. Negative amounts deduct,
// positive amounts grant or restore.
type Transaction struct {
	Amount    int
	Reason    Reason
	AppID     string
	Timestamp time.Time
}

// WeeklyPlan is the credit state for one device-local week (Monday start).
// CreditsRemaining only moves through Transactions; once the week has
// passed, the plan is immutable history.
type WeeklyPlan struct {
	WeekStart        string
	CreditsRemaining int
	FailureCount     int
	FeePaidOn        string
	Transactions     []Transaction
}

// DayOutcome is the ledger's scoring record for one day. Exactly one
// outcome exists per evaluated day, which is what makes the lazy rollover
// idempotent.
type DayOutcome struct {
	Day           string
	Failed        bool
	OverLimitApps []string
	EvaluatedAt   time.Time
}

// StreakRecord is derived from day outcomes, never independently mutated
type StreakRecord struct {
	CurrentStreak    int
	LongestStreak    int
	LastEvaluatedDay string
}

// AppReport is one entry of the external reporter's per-app breakdown
type AppReport struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

// SharedReport mirrors the shared-store layout written by the external
// measurement process. Key names are fixed for compatibility:
// total_usage, apps_count, top_apps, last_updated.
type SharedReport struct {
	TotalMinutes int         `json:"total_usage"`
	AppCount     int         `json:"apps_count"`
	TopApps      []AppReport `json:"top_apps"`
	LastUpdated  float64     `json:"last_updated"`
}

// SnapshotHandler receives accepted snapshots whose value changed.
// Repeated identical snapshots are never delivered.
type SnapshotHandler interface {
	OnSnapshot(ctx context.Context, snap *Snapshot)
}

// NearLimitHandler is called once when an app's usage crosses the warning
// ratio of its effective limit (optional)
type NearLimitHandler interface {
	OnNearLimit(ctx context.Context, appID string, used, limit int)
}

// Config holds engine configuration
type Config struct {
	// WeeklyCredits is the opening balance of each week (default: 7)
	WeeklyCredits int

	// NearLimitRatio is the usage/limit ratio that flips an app to
	// near-limit (default: 0.8)
	NearLimitRatio float64

	// PollOffsets is the bounded retry schedule, as offsets from the
	// triggering event, used when polling the external reporter
	// (default: 0s, 1s, 2s, 3s, 6s, 9s, 12s, 15s)
	PollOffsets []time.Duration

	// PollInterval is the steady-state cadence of background polling in
	// Engine.Run (default: 1 minute)
	PollInterval time.Duration

	// Clock supplies device-local time (default: SystemClock)
	Clock Clock

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics tracks engine operations (default: NoopMetrics)
	Metrics Metrics

	// SnapshotHandler receives changed usage snapshots (optional)
	SnapshotHandler SnapshotHandler

	// NearLimitHandler receives warning-threshold crossings (optional)
	NearLimitHandler NearLimitHandler
}

// DefaultPollOffsets is the retry schedule used when Config.PollOffsets is
// empty. The external reporter gives no completion signal, so reads are
// retried on a fixed, bounded schedule after a trigger.
func DefaultPollOffsets() []time.Duration {
	return []time.Duration{
		0,
		1 * time.Second,
		2 * time.Second,
		3 * time.Second,
		6 * time.Second,
		9 * time.Second,
		12 * time.Second,
		15 * time.Second,
	}
}
