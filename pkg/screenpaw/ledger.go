package screenpaw

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxDaysPerEvaluation bounds how far back a lazy rollover will score days
// that were never evaluated (device off, app not opened)
const maxDaysPerEvaluation = 7

// Ledger maintains the weekly credit balance. All mutations are serialized
// through one mutex; a partial write would break the balance invariant.
//
// The day rollover is evaluated lazily: the first call after midnight scores
// every day since the last recorded outcome. A day is scored as one failure
// event if any enabled goal exceeded its effective limit, regardless of how
// many apps went over.
type Ledger struct {
	storage       Storage
	clock         Clock
	logger        Logger
	metrics       Metrics
	weeklyCredits int

	mu     sync.Mutex
	halted bool
}

// NewLedger creates a ledger over the given persistence
func NewLedger(storage Storage, weeklyCredits int, clock Clock, logger Logger, metrics Metrics) *Ledger {
	if weeklyCredits <= 0 {
		weeklyCredits = 7
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = &NoopLogger{}
	}
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &Ledger{
		storage:       storage,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
		weeklyCredits: weeklyCredits,
	}
}

// foldBalance replays transactions with per-step clamping to [0, cap].
// The clamp applies at every step, not once at the end, so a penalty that
// bottoms out at 0 and a grant that tops out at cap both round-trip exactly.
func foldBalance(txs []Transaction, cap int) int {
	balance := 0
	for _, tx := range txs {
		balance += tx.Amount
		if balance < 0 {
			balance = 0
		}
		if balance > cap {
			balance = cap
		}
	}
	return balance
}

// verifyPlan checks the ledger invariant on a loaded plan
func (l *Ledger) verifyPlan(plan *WeeklyPlan) error {
	if plan == nil {
		return nil
	}
	if got := foldBalance(plan.Transactions, l.weeklyCredits); got != plan.CreditsRemaining {
		l.halted = true
		l.logger.Error("ledger invariant violation",
			Field{Key: "week_start", Value: plan.WeekStart},
			Field{Key: "credits_remaining", Value: plan.CreditsRemaining},
			Field{Key: "transaction_sum", Value: got})
		return ErrInvariantViolation
	}
	return nil
}

// currentPlanLocked loads the plan for the week containing now, creating it
// with the opening weekly grant when the week boundary has been crossed.
// Callers must hold l.mu.
func (l *Ledger) currentPlanLocked(ctx context.Context, now time.Time) (*WeeklyPlan, error) {
	weekStart := WeekStartKey(now)
	plan, err := l.storage.GetPlan(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan != nil {
		if err := l.verifyPlan(plan); err != nil {
			return nil, err
		}
		return plan, nil
	}

	plan = &WeeklyPlan{
		WeekStart:        weekStart,
		CreditsRemaining: l.weeklyCredits,
		Transactions: []Transaction{{
			Amount:    l.weeklyCredits,
			Reason:    ReasonWeeklyGrant,
			Timestamp: now,
		}},
	}
	if err := l.storage.PutPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}
	l.logger.Info("weekly plan created",
		Field{Key: "week_start", Value: weekStart},
		Field{Key: "credits", Value: l.weeklyCredits})
	return plan, nil
}

// applyLocked appends one transaction, moves the balance with clamping,
// re-validates the invariant and persists the plan. Callers must hold l.mu.
func (l *Ledger) applyLocked(ctx context.Context, plan *WeeklyPlan, tx Transaction) error {
	plan.Transactions = append(plan.Transactions, tx)

	balance := plan.CreditsRemaining + tx.Amount
	if balance < 0 {
		balance = 0
	}
	if balance > l.weeklyCredits {
		balance = l.weeklyCredits
	}
	plan.CreditsRemaining = balance

	if err := l.verifyPlan(plan); err != nil {
		return err
	}
	if err := l.storage.PutPlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to store plan: %w", err)
	}
	return nil
}

// evaluatePendingLocked scores every unevaluated day up to yesterday.
// Callers must hold l.mu.
func (l *Ledger) evaluatePendingLocked(ctx context.Context, now time.Time) error {
	today := DayKey(now)

	goals, err := l.storage.ListGoals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}
	if len(goals) == 0 {
		return nil
	}

	outcomes, err := l.storage.ListOutcomes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}

	start := DayKey(now.AddDate(0, 0, -maxDaysPerEvaluation))
	if n := len(outcomes); n > 0 {
		if next := nextDayKey(outcomes[n-1].Day); next > start {
			start = next
		}
	}

	for day := start; day < today; day = nextDayKey(day) {
		if err := l.scoreDayLocked(ctx, goals, day, now); err != nil {
			return err
		}
	}
	return nil
}

// scoreDayLocked records the outcome for one day and charges the penalty
// when the day failed. Callers must hold l.mu.
func (l *Ledger) scoreDayLocked(ctx context.Context, goals []*Goal, day string, now time.Time) error {
	existing, err := l.storage.GetOutcome(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to load outcome: %w", err)
	}
	if existing != nil {
		return nil
	}

	var overLimit []string
	monitored := false
	for _, g := range goals {
		if !g.Enabled || DayKey(g.CreatedAt) > day {
			continue
		}
		monitored = true
		snap, err := l.storage.GetSnapshot(ctx, g.AppID, day)
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap != nil && snap.MinutesUsed > g.EffectiveLimit(day) {
			overLimit = append(overLimit, g.AppID)
		}
	}
	if !monitored {
		// Nothing was being watched that day; no outcome to record
		return nil
	}

	outcome := &DayOutcome{
		Day:           day,
		Failed:        len(overLimit) > 0,
		OverLimitApps: overLimit,
		EvaluatedAt:   now,
	}
	if err := l.storage.PutOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("failed to store outcome: %w", err)
	}
	if !outcome.Failed {
		return nil
	}

	if weekStartOfDay(day) != WeekStartKey(now) {
		// The plan covering that day is already closed history; the failure
		// still counts for streaks but charges nothing against the new week
		l.logger.Info("failure in closed week, no penalty charged",
			Field{Key: "day", Value: day})
		return nil
	}

	plan, err := l.currentPlanLocked(ctx, now)
	if err != nil {
		return err
	}
	if plan.FeePaidOn == DayKey(now) {
		l.logger.Info("penalty waived by accountability fee",
			Field{Key: "day", Value: day})
		return nil
	}

	amount := plan.FailureCount + 1
	plan.FailureCount++
	if err := l.applyLocked(ctx, plan, Transaction{
		Amount:    -amount,
		Reason:    ReasonOverLimitPenalty,
		Timestamp: now,
	}); err != nil {
		return err
	}

	l.metrics.RecordPenalty(amount)
	l.logger.Info("over-limit penalty charged",
		Field{Key: "day", Value: day},
		Field{Key: "amount", Value: amount},
		Field{Key: "apps", Value: overLimit},
		Field{Key: "credits_remaining", Value: plan.CreditsRemaining})
	return nil
}

// EvaluatePending runs the lazy day rollover immediately
func (l *Ledger) EvaluatePending(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return ErrLedgerHalted
	}
	return l.evaluatePendingLocked(ctx, l.clock.Now())
}

// CurrentPlan returns a copy of the current week's plan after running the
// lazy rollover
func (l *Ledger) CurrentPlan(ctx context.Context) (*WeeklyPlan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return nil, ErrLedgerHalted
	}

	now := l.clock.Now()
	if err := l.evaluatePendingLocked(ctx, now); err != nil {
		return nil, err
	}
	plan, err := l.currentPlanLocked(ctx, now)
	if err != nil {
		return nil, err
	}

	planCopy := *plan
	planCopy.Transactions = append([]Transaction(nil), plan.Transactions...)
	return &planCopy, nil
}

// Balance returns the current week's remaining credits
func (l *Ledger) Balance(ctx context.Context) (int, error) {
	plan, err := l.CurrentPlan(ctx)
	if err != nil {
		return 0, err
	}
	return plan.CreditsRemaining, nil
}

// History returns the current week's transactions, oldest first
func (l *Ledger) History(ctx context.Context) ([]Transaction, error) {
	plan, err := l.CurrentPlan(ctx)
	if err != nil {
		return nil, err
	}
	return plan.Transactions, nil
}

// PayAccountabilityFee restores the balance to the full weekly grant,
// regardless of how low it was, and waives extension, unblock and penalty
// charges for the remainder of today. It can be paid once per day; tomorrow
// starts with no waiver.
func (l *Ledger) PayAccountabilityFee(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return ErrLedgerHalted
	}

	now := l.clock.Now()
	if err := l.evaluatePendingLocked(ctx, now); err != nil {
		return err
	}
	plan, err := l.currentPlanLocked(ctx, now)
	if err != nil {
		return err
	}

	today := DayKey(now)
	if plan.FeePaidOn == today {
		return ErrFeeAlreadyPaid
	}

	plan.FeePaidOn = today
	if err := l.applyLocked(ctx, plan, Transaction{
		Amount:    l.weeklyCredits - plan.CreditsRemaining,
		Reason:    ReasonAccountabilityRestore,
		Timestamp: now,
	}); err != nil {
		return err
	}

	l.logger.Info("accountability fee paid",
		Field{Key: "day", Value: today},
		Field{Key: "credits_remaining", Value: plan.CreditsRemaining})
	return nil
}

// ChargeExtension charges the 1-credit extension fee for an app. The fee is
// waived on the day the accountability fee was paid; a waived charge still
// appends a zero-amount transaction so the action is on the record.
func (l *Ledger) ChargeExtension(ctx context.Context, appID string) error {
	return l.chargeFee(ctx, appID, ReasonExtensionFee)
}

// ChargeUnblock charges the 1-credit unblock fee for an app
func (l *Ledger) ChargeUnblock(ctx context.Context, appID string) error {
	return l.chargeFee(ctx, appID, ReasonUnblockFee)
}

func (l *Ledger) chargeFee(ctx context.Context, appID string, reason Reason) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return ErrLedgerHalted
	}

	now := l.clock.Now()
	if err := l.evaluatePendingLocked(ctx, now); err != nil {
		return err
	}
	plan, err := l.currentPlanLocked(ctx, now)
	if err != nil {
		return err
	}

	waived := plan.FeePaidOn == DayKey(now)
	amount := -1
	if waived {
		amount = 0
	} else if plan.CreditsRemaining < 1 {
		return ErrInsufficientCredits
	}

	if err := l.applyLocked(ctx, plan, Transaction{
		Amount:    amount,
		Reason:    reason,
		AppID:     appID,
		Timestamp: now,
	}); err != nil {
		return err
	}

	l.metrics.RecordCreditSpend(reason, -amount, waived)
	l.logger.Info("fee charged",
		Field{Key: "reason", Value: string(reason)},
		Field{Key: "app_id", Value: appID},
		Field{Key: "waived", Value: waived},
		Field{Key: "credits_remaining", Value: plan.CreditsRemaining})
	return nil
}

// GrantCredits applies a manual credit grant (operator escape hatch).
// The balance still tops out at the weekly grant.
func (l *Ledger) GrantCredits(ctx context.Context, amount int) error {
	if amount <= 0 {
		return ErrInvalidLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted {
		return ErrLedgerHalted
	}

	now := l.clock.Now()
	plan, err := l.currentPlanLocked(ctx, now)
	if err != nil {
		return err
	}
	return l.applyLocked(ctx, plan, Transaction{
		Amount:    amount,
		Reason:    ReasonManualGrant,
		Timestamp: now,
	})
}

// UnblockedToday reports whether an unblock fee was recorded for the app on
// the plan's current day. Used by the blocking derivation.
func UnblockedToday(plan *WeeklyPlan, appID, day string) bool {
	if plan == nil {
		return false
	}
	for _, tx := range plan.Transactions {
		if tx.Reason == ReasonUnblockFee && tx.AppID == appID && DayKey(tx.Timestamp) == day {
			return true
		}
	}
	return false
}
