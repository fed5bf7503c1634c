package screenpaw_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
	"github.com/screenpaw/screenpaw/storage/memory"
)

func newTestEngine(t *testing.T, clock screenpaw.Clock) (*screenpaw.Engine, *memory.ReportStore) {
	t.Helper()

	reports := memory.NewReportStore()
	engine, err := screenpaw.New(memory.New(), reports, screenpaw.Config{Clock: clock})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return engine, reports
}

func reportUsage(t *testing.T, engine *screenpaw.Engine, reports *memory.ReportStore, name string, minutes int) {
	t.Helper()

	reports.SetReport(&screenpaw.SharedReport{
		TotalMinutes: minutes,
		AppCount:     1,
		TopApps:      []screenpaw.AppReport{{Name: name, Minutes: minutes}},
	})
	if err := engine.Poll(context.Background()); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
}

func TestNew(t *testing.T) {
	engine, err := screenpaw.New(memory.New(), memory.NewReportStore(), screenpaw.Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}

	if _, err := screenpaw.New(nil, nil, screenpaw.Config{}); err != screenpaw.ErrStorageUnavailable {
		t.Errorf("Expected ErrStorageUnavailable for nil storage, got %v", err)
	}
}

// TestEngine_BlockAndUnblockScenario walks the canonical day: usage crosses
// the limit, the app blocks, a credit buys access back, and the next day
// starts fresh against the base limit.
func TestEngine_BlockAndUnblockScenario(t *testing.T) {
	clock := newFakeClock(monday)
	engine, reports := newTestEngine(t, clock)
	ctx := context.Background()

	if _, err := engine.AddMonitoredApp(ctx, "x", "x", 60); err != nil {
		t.Fatalf("AddMonitoredApp failed: %v", err)
	}

	state, err := engine.BlockingState(ctx, "x")
	if err != nil {
		t.Fatalf("BlockingState failed: %v", err)
	}
	if state != screenpaw.StateActive {
		t.Errorf("Expected active before any usage, got %s", state)
	}

	reportUsage(t, engine, reports, "x", 65)
	if state, _ = engine.BlockingState(ctx, "x"); state != screenpaw.StateOverLimitBlocked {
		t.Errorf("Expected over-limit-blocked at 65/60, got %s", state)
	}

	if err := engine.UnblockWithCredit(ctx, "x"); err != nil {
		t.Fatalf("UnblockWithCredit failed: %v", err)
	}
	if balance, _ := engine.CurrentBalance(ctx); balance != 6 {
		t.Errorf("Expected 7-1=6 after unblock, got %d", balance)
	}
	if state, _ = engine.BlockingState(ctx, "x"); state != screenpaw.StateUnblockedPaid {
		t.Errorf("Expected unblocked-paid, got %s", state)
	}

	// Unblock is terminal for the day even as usage keeps growing
	reportUsage(t, engine, reports, "x", 120)
	if state, _ = engine.BlockingState(ctx, "x"); state != screenpaw.StateUnblockedPaid {
		t.Errorf("Expected unblocked-paid to stick, got %s", state)
	}

	// Next day starts fresh at active against the base limit
	clock.Set(monday.AddDate(0, 0, 1))
	if state, _ = engine.BlockingState(ctx, "x"); state != screenpaw.StateActive {
		t.Errorf("Expected active on the new day, got %s", state)
	}
}

func TestEngine_UnblockRequiresBlockedState(t *testing.T) {
	clock := newFakeClock(monday)
	engine, reports := newTestEngine(t, clock)
	ctx := context.Background()

	if _, err := engine.AddMonitoredApp(ctx, "x", "x", 60); err != nil {
		t.Fatalf("AddMonitoredApp failed: %v", err)
	}
	reportUsage(t, engine, reports, "x", 30)

	if err := engine.UnblockWithCredit(ctx, "x"); err != screenpaw.ErrAppNotBlocked {
		t.Errorf("Expected ErrAppNotBlocked, got %v", err)
	}
	if err := engine.UnblockWithCredit(ctx, "ghost"); !errors.Is(err, screenpaw.ErrUnknownApp) {
		t.Errorf("Expected ErrUnknownApp, got %v", err)
	}
}

func TestEngine_ExtensionFlow(t *testing.T) {
	clock := newFakeClock(monday)
	engine, reports := newTestEngine(t, clock)
	ctx := context.Background()

	if _, err := engine.AddMonitoredApp(ctx, "x", "x", 60); err != nil {
		t.Fatalf("AddMonitoredApp failed: %v", err)
	}
	reportUsage(t, engine, reports, "x", 50)

	// 50/60 is past the 80% warning ratio
	if state, _ := engine.BlockingState(ctx, "x"); state != screenpaw.StateNearLimit {
		t.Errorf("Expected near-limit at 50/60, got %s", state)
	}

	// Lowering or matching the current limit is rejected without charge
	if err := engine.ExtendLimit(ctx, "x", 30); err != screenpaw.ErrLimitNotIncreasing {
		t.Errorf("Expected ErrLimitNotIncreasing for 30, got %v", err)
	}
	if err := engine.ExtendLimit(ctx, "x", 60); err != screenpaw.ErrLimitNotIncreasing {
		t.Errorf("Expected ErrLimitNotIncreasing for 60, got %v", err)
	}
	if balance, _ := engine.CurrentBalance(ctx); balance != 7 {
		t.Errorf("Expected failed extension to charge nothing, got %d", balance)
	}

	// Raising to 90 costs one credit and recomputes against the new limit
	if err := engine.ExtendLimit(ctx, "x", 90); err != nil {
		t.Fatalf("ExtendLimit failed: %v", err)
	}
	if balance, _ := engine.CurrentBalance(ctx); balance != 6 {
		t.Errorf("Expected 7-1=6 after extension, got %d", balance)
	}
	if state, _ := engine.BlockingState(ctx, "x"); state != screenpaw.StateExtendedActive {
		t.Errorf("Expected extended-active at 50/90, got %s", state)
	}

	// Extensions are monotonic within the day
	if err := engine.ExtendLimit(ctx, "x", 80); err != screenpaw.ErrLimitNotIncreasing {
		t.Errorf("Expected ErrLimitNotIncreasing for 80 after 90, got %v", err)
	}

	// If usage still exceeds the extended limit, the block returns
	reportUsage(t, engine, reports, "x", 95)
	if state, _ := engine.BlockingState(ctx, "x"); state != screenpaw.StateOverLimitBlocked {
		t.Errorf("Expected over-limit-blocked at 95/90, got %s", state)
	}

	// The extension lapses at day rollover; the base limit is in force again
	clock.Set(monday.AddDate(0, 0, 1))
	apps, err := engine.MonitoredApps(ctx)
	if err != nil || len(apps) != 1 {
		t.Fatalf("MonitoredApps failed: %v", err)
	}
	if got := apps[0].EffectiveLimit(screenpaw.DayKey(clock.Now())); got != 60 {
		t.Errorf("Expected base limit 60 on the new day, got %d", got)
	}
	if err := engine.ExtendLimit(ctx, "x", 75); err != nil {
		t.Errorf("Expected extension from base to succeed on the new day, got %v", err)
	}
}

func TestEngine_ExtensionFreeAfterFee(t *testing.T) {
	clock := newFakeClock(monday)
	engine, _ := newTestEngine(t, clock)
	ctx := context.Background()

	if _, err := engine.AddMonitoredApp(ctx, "x", "x", 60); err != nil {
		t.Fatalf("AddMonitoredApp failed: %v", err)
	}
	if err := engine.PayAccountabilityFee(ctx); err != nil {
		t.Fatalf("PayAccountabilityFee failed: %v", err)
	}

	if err := engine.ExtendLimit(ctx, "x", 90); err != nil {
		t.Fatalf("ExtendLimit failed: %v", err)
	}
	if balance, _ := engine.CurrentBalance(ctx); balance != 7 {
		t.Errorf("Expected extension free on the fee day, got %d", balance)
	}
}

func TestEngine_StreakDerivation(t *testing.T) {
	clock := newFakeClock(monday)
	engine, reports := newTestEngine(t, clock)
	ctx := context.Background()

	if _, err := engine.AddMonitoredApp(ctx, "x", "x", 60); err != nil {
		t.Fatalf("AddMonitoredApp failed: %v", err)
	}

	// Two compliant days, one failure, one compliant day
	usage := []int{30, 40, 90, 20}
	for i, minutes := range usage {
		clock.Set(monday.AddDate(0, 0, i))
		reportUsage(t, engine, reports, "x", minutes)
	}

	clock.Set(monday.AddDate(0, 0, len(usage)))
	streak, err := engine.Streak(ctx)
	if err != nil {
		t.Fatalf("Streak failed: %v", err)
	}
	if streak.CurrentStreak != 1 {
		t.Errorf("Expected current streak 1 after the failure, got %d", streak.CurrentStreak)
	}
	if streak.LongestStreak != 2 {
		t.Errorf("Expected longest streak 2, got %d", streak.LongestStreak)
	}
}

func TestEngine_DegradedAdvisory(t *testing.T) {
	clock := newFakeClock(monday)
	engine, reports := newTestEngine(t, clock)
	ctx := context.Background()

	if _, err := engine.AddMonitoredApp(ctx, "x", "x", 60); err != nil {
		t.Fatalf("AddMonitoredApp failed: %v", err)
	}

	reports.SetError(errors.New("access denied"))
	if err := engine.Poll(ctx); err != nil {
		t.Fatalf("Expected degraded poll to not fail, got %v", err)
	}
	if !engine.UsageDegraded() {
		t.Error("Expected degraded advisory")
	}

	// Ledger evaluation is never blocked by degraded data
	if _, err := engine.CurrentBalance(ctx); err != nil {
		t.Errorf("Expected balance to evaluate while degraded, got %v", err)
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	clock := newFakeClock(monday)
	engine, reports := newTestEngine(t, clock)
	reports.SetReport(&screenpaw.SharedReport{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
