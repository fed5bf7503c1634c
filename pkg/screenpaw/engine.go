package screenpaw

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine ties the goal store, reconciler, ledger and streak engine together
// behind the action and observation interfaces consumed by UI layers.
// Construct one at startup and pass it by reference; there are no package
// singletons.
type Engine struct {
	storage Storage
	goals   *GoalStore
	recon   *Reconciler
	ledger  *Ledger
	streaks *StreakEngine

	clock        Clock
	logger       Logger
	pollInterval time.Duration
	ratio        float64
}

// New creates an engine over the given persistence and shared-store reader.
// reports may be nil; the engine then runs on local estimates only and
// reports degraded usage data.
func New(storage Storage, reports ReportStore, cfg Config) (*Engine, error) {
	if storage == nil {
		return nil, ErrStorageUnavailable
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = &NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoopMetrics{}
	}
	if cfg.WeeklyCredits <= 0 {
		cfg.WeeklyCredits = 7
	}
	if cfg.NearLimitRatio <= 0 || cfg.NearLimitRatio >= 1 {
		cfg.NearLimitRatio = 0.8
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}

	goals := NewGoalStore(storage, cfg.Clock, cfg.Logger)
	return &Engine{
		storage:      storage,
		goals:        goals,
		recon:        NewReconciler(storage, reports, goals, cfg),
		ledger:       NewLedger(storage, cfg.WeeklyCredits, cfg.Clock, cfg.Logger, cfg.Metrics),
		streaks:      NewStreakEngine(storage),
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		ratio:        cfg.NearLimitRatio,
	}, nil
}

// AddMonitoredApp registers an app with a daily limit in minutes
func (e *Engine) AddMonitoredApp(ctx context.Context, appID, name string, limitMinutes int) (*Goal, error) {
	return e.goals.AddGoal(ctx, appID, name, limitMinutes)
}

// DisableApp stops monitoring an app without deleting its history
func (e *Engine) DisableApp(ctx context.Context, appID string) error {
	return e.goals.DisableGoal(ctx, appID)
}

// MonitoredApps lists the enabled goals
func (e *Engine) MonitoredApps(ctx context.Context) ([]*Goal, error) {
	return e.goals.ListActiveGoals(ctx)
}

// RecordUsageSnapshot feeds a locally tracked usage estimate for an app
func (e *Engine) RecordUsageSnapshot(ctx context.Context, appID string, minutes int) error {
	return e.recon.RecordLocalEstimate(ctx, appID, minutes)
}

// ExtendLimit raises an app's limit for the rest of today. It charges one
// credit unless the accountability fee was paid today, and fails without
// side effects when the new limit does not exceed the current one or when
// the balance is empty and the fee is not waived.
func (e *Engine) ExtendLimit(ctx context.Context, appID string, newLimitMinutes int) error {
	goal, err := e.goals.Goal(ctx, appID)
	if err != nil {
		return err
	}
	today := DayKey(e.clock.Now())
	if newLimitMinutes <= goal.EffectiveLimit(today) {
		return ErrLimitNotIncreasing
	}

	// Charge before applying: a failed charge must leave the limit untouched
	if err := e.ledger.ChargeExtension(ctx, appID); err != nil {
		return err
	}
	if _, err := e.goals.ExtendLimit(ctx, appID, newLimitMinutes); err != nil {
		return err
	}
	return nil
}

// UnblockWithCredit spends one credit to lift the block on an app for the
// rest of the day. Valid only while the app is over-limit-blocked.
func (e *Engine) UnblockWithCredit(ctx context.Context, appID string) error {
	state, err := e.BlockingState(ctx, appID)
	if err != nil {
		return err
	}
	if state != StateOverLimitBlocked {
		return ErrAppNotBlocked
	}
	return e.ledger.ChargeUnblock(ctx, appID)
}

// PayAccountabilityFee restores the weekly balance in full and waives
// today's remaining fees and penalties
func (e *Engine) PayAccountabilityFee(ctx context.Context) error {
	return e.ledger.PayAccountabilityFee(ctx)
}

// CurrentBalance returns the remaining credits for the current week,
// running the lazy day rollover first
func (e *Engine) CurrentBalance(ctx context.Context) (int, error) {
	return e.ledger.Balance(ctx)
}

// TransactionHistory returns the current week's transactions, oldest first
func (e *Engine) TransactionHistory(ctx context.Context) ([]Transaction, error) {
	return e.ledger.History(ctx)
}

// BlockingState derives the enforcement state of an app for today
func (e *Engine) BlockingState(ctx context.Context, appID string) (BlockingState, error) {
	goal, err := e.goals.Goal(ctx, appID)
	if err != nil {
		return "", err
	}

	plan, err := e.ledger.CurrentPlan(ctx)
	if err != nil {
		return "", err
	}

	today := DayKey(e.clock.Now())
	used, err := e.recon.UsageFor(ctx, appID, today)
	if err != nil {
		return "", err
	}

	return ComputeBlockingState(
		used,
		goal.EffectiveLimit(today),
		e.ratio,
		UnblockedToday(plan, appID, today),
		goal.ExtendedOn == today,
	), nil
}

// Streak recomputes the pass/fail streak from ledger history
func (e *Engine) Streak(ctx context.Context) (StreakRecord, error) {
	if err := e.ledger.EvaluatePending(ctx); err != nil {
		return StreakRecord{}, err
	}
	return e.streaks.Streak(ctx)
}

// TopDistractions returns today's filtered per-app usage ranking
func (e *Engine) TopDistractions() []AppReport {
	return e.recon.TopDistractions()
}

// TotalUsageMinutes returns today's aggregate usage as reported externally
func (e *Engine) TotalUsageMinutes() int {
	return e.recon.TotalMinutes()
}

// UsageDegraded reports whether today's figures are running on local
// estimates because the shared store could not be read (advisory)
func (e *Engine) UsageDegraded() bool {
	return e.recon.Degraded()
}

// Poll runs one reconciliation pass against the shared store
func (e *Engine) Poll(ctx context.Context) error {
	return e.recon.Poll(ctx)
}

// PollBurst runs the bounded retry schedule once, for collaborators that
// want fresh figures after a triggering event (a screen appearing, a
// foreground transition). Cancel ctx when the observer goes away.
func (e *Engine) PollBurst(ctx context.Context) error {
	return e.recon.PollBurst(ctx)
}

// Run drives background reconciliation and the lazy day rollover until ctx
// is cancelled. Polling stays bounded per pass; nothing here blocks waiting
// on the external process.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()
		for {
			if err := e.recon.Poll(ctx); err != nil {
				e.logger.Warn("background poll failed",
					Field{Key: "error", Value: err.Error()})
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			if err := e.ledger.EvaluatePending(ctx); err != nil {
				if err == ErrLedgerHalted || err == ErrInvariantViolation {
					return err
				}
				e.logger.Warn("rollover evaluation failed",
					Field{Key: "error", Value: err.Error()})
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}
