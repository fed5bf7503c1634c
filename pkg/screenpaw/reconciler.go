package screenpaw

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// placeholderName matches the reporter's measurement artifacts ("app 902388"
// and friends). These are not real apps and must never contribute to per-app
// usage, penalties or rankings.
var placeholderName = regexp.MustCompile(`(?i)^app\s*\d{2,}$`)

func isPlaceholderName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true
	}
	if strings.EqualFold(trimmed, "unknown") {
		return true
	}
	return placeholderName.MatchString(trimmed)
}

// Reconciler merges the two untrusted usage sources into one accepted
// per-(app, day) figure.
//
// The external reporter runs in a separate sandboxed process and writes to a
// shared store with no delivery guarantee and no completion signal, so the
// reconciler polls on a bounded schedule and treats any non-zero external
// value as authoritative. Local estimates exist only to avoid a blank
// reading before the reporter first writes; they never override external
// data, and the accepted value never decreases within a day.
type Reconciler struct {
	storage Storage
	reports ReportStore
	goals   *GoalStore
	clock   Clock
	logger  Logger
	metrics Metrics

	snapshots      SnapshotHandler
	nearLimit      NearLimitHandler
	nearLimitRatio float64
	offsets        []time.Duration

	mu           sync.Mutex
	degradedDay  string
	lastReport   *SharedReport
	lastReportOn string
}

// NewReconciler builds a reconciler. reports may be nil, in which case every
// poll runs degraded on local estimates alone.
func NewReconciler(storage Storage, reports ReportStore, goals *GoalStore, cfg Config) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	ratio := cfg.NearLimitRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.8
	}
	offsets := cfg.PollOffsets
	if len(offsets) == 0 {
		offsets = DefaultPollOffsets()
	}

	return &Reconciler{
		storage:        storage,
		reports:        reports,
		goals:          goals,
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
		snapshots:      cfg.SnapshotHandler,
		nearLimit:      cfg.NearLimitHandler,
		nearLimitRatio: ratio,
		offsets:        offsets,
	}
}

// RecordLocalEstimate feeds the in-process usage estimate for an app.
// The estimate is accepted only while no non-zero external value exists for
// the day, and only if it raises the accepted value.
func (r *Reconciler) RecordLocalEstimate(ctx context.Context, appID string, minutes int) error {
	if minutes < 0 {
		return ErrInvalidLimit
	}
	goal, err := r.goals.Goal(ctx, appID)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	_, err = r.accept(ctx, goal, DayKey(now), minutes, SourceLocalEstimate, now)
	return err
}

// Poll runs one reconciliation pass: force-read the shared store, merge the
// report against monitored goals, persist accepted snapshots and emit the
// ones whose value changed.
//
// An unreadable shared store is an advisory condition: the day is marked
// degraded, previously accepted values (including local estimates) stand,
// and ledger evaluation is never blocked.
func (r *Reconciler) Poll(ctx context.Context) error {
	now := r.clock.Now()
	today := DayKey(now)

	var report *SharedReport
	var err error
	started := time.Now()
	if r.reports != nil {
		report, err = r.reports.ReadReport(ctx)
	} else {
		err = ErrStorageUnavailable
	}
	r.metrics.RecordPoll(time.Since(started), err)

	if err != nil {
		r.mu.Lock()
		r.degradedDay = today
		r.mu.Unlock()
		r.metrics.RecordDegraded()
		r.logger.Warn("shared store unreadable, falling back to local estimates",
			Field{Key: "day", Value: today},
			Field{Key: "error", Value: err.Error()})
		return nil
	}

	r.mu.Lock()
	if r.degradedDay == today {
		r.degradedDay = ""
	}
	r.lastReport = report
	r.lastReportOn = today
	r.mu.Unlock()

	goals, err := r.goals.ListActiveGoals(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]*Goal, len(goals))
	for _, g := range goals {
		byName[strings.ToLower(strings.TrimSpace(g.DisplayName))] = g
	}

	ts := reportTimestamp(report, now)
	for _, app := range report.TopApps {
		if isPlaceholderName(app.Name) || app.Minutes < 0 {
			continue
		}
		goal, ok := byName[strings.ToLower(strings.TrimSpace(app.Name))]
		if !ok {
			continue
		}
		if _, err := r.accept(ctx, goal, today, app.Minutes, SourceExternalReport, ts); err != nil {
			return err
		}
	}
	return nil
}

// PollBurst polls on the bounded retry schedule, as offsets from now.
// It returns when the last offset has fired or ctx is cancelled, whichever
// comes first; the external process gets no say in how long we wait.
func (r *Reconciler) PollBurst(ctx context.Context) error {
	trigger := time.Now()
	for _, offset := range r.offsets {
		wait := time.Until(trigger.Add(offset))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := r.Poll(ctx); err != nil {
			r.logger.Warn("poll failed", Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

// accept merges one incoming figure into the accepted snapshot for
// (app, day) and returns whether the accepted value changed
func (r *Reconciler) accept(ctx context.Context, goal *Goal, day string, minutes int, source Source, ts time.Time) (bool, error) {
	prev, err := r.storage.GetSnapshot(ctx, goal.AppID, day)
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	prevMinutes := 0
	if prev != nil {
		prevMinutes = prev.MinutesUsed
		// Once the reporter has produced a non-zero value it is
		// authoritative; estimates can no longer move the figure
		if source == SourceLocalEstimate && prev.Source == SourceExternalReport && prev.MinutesUsed > 0 {
			return false, nil
		}
	}

	// The accepted value never decreases; a zero or smaller read never
	// overwrites what was already accepted, and replaying the same report
	// is a no-op
	if minutes <= prevMinutes {
		return false, nil
	}

	snap := &Snapshot{
		AppID:           goal.AppID,
		Day:             day,
		MinutesUsed:     minutes,
		Source:          source,
		SourceTimestamp: ts,
		Degraded:        r.Degraded(),
	}
	if err := r.storage.PutSnapshot(ctx, snap); err != nil {
		return false, fmt.Errorf("failed to store snapshot: %w", err)
	}
	r.metrics.RecordSnapshotAccepted(source)
	r.logger.Debug("snapshot accepted",
		Field{Key: "app_id", Value: goal.AppID},
		Field{Key: "day", Value: day},
		Field{Key: "minutes", Value: minutes},
		Field{Key: "source", Value: string(source)})

	if r.snapshots != nil {
		r.snapshots.OnSnapshot(ctx, snap)
	}
	r.notifyNearLimit(ctx, goal, day, prevMinutes, minutes)
	return true, nil
}

// notifyNearLimit fires the near-limit handler once, on the poll that
// crosses the warning ratio
func (r *Reconciler) notifyNearLimit(ctx context.Context, goal *Goal, day string, prevMinutes, minutes int) {
	if r.nearLimit == nil {
		return
	}
	limit := goal.EffectiveLimit(day)
	if limit <= 0 {
		return
	}
	threshold := r.nearLimitRatio * float64(limit)
	if float64(prevMinutes) < threshold && float64(minutes) >= threshold && minutes < limit {
		r.nearLimit.OnNearLimit(ctx, goal.AppID, minutes, limit)
	}
}

// UsageFor returns the accepted minutes for (app, day); zero when nothing
// has been accepted yet
func (r *Reconciler) UsageFor(ctx context.Context, appID, day string) (int, error) {
	snap, err := r.storage.GetSnapshot(ctx, appID, day)
	if err != nil {
		return 0, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		return 0, nil
	}
	return snap.MinutesUsed, nil
}

// Degraded reports whether today's data is running on local estimates
// because the shared store could not be read
func (r *Reconciler) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degradedDay != "" && r.degradedDay == DayKey(r.clock.Now())
}

// TotalMinutes returns the reporter's aggregate for today, taken as-is from
// the shared store (placeholder minutes included); zero when no report has
// been read today
func (r *Reconciler) TotalMinutes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastReport == nil || r.lastReportOn != DayKey(r.clock.Now()) {
		return 0
	}
	return r.lastReport.TotalMinutes
}

// TopDistractions returns today's per-app ranking from the last report,
// placeholders and zero-minute apps filtered out, highest usage first
func (r *Reconciler) TopDistractions() []AppReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastReport == nil || r.lastReportOn != DayKey(r.clock.Now()) {
		return nil
	}

	ranked := make([]AppReport, 0, len(r.lastReport.TopApps))
	for _, app := range r.lastReport.TopApps {
		if isPlaceholderName(app.Name) || app.Minutes <= 0 {
			continue
		}
		ranked = append(ranked, app)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Minutes > ranked[j].Minutes
	})
	return ranked
}

// reportTimestamp converts the reporter's epoch-seconds float into a time,
// falling back to now when the reporter never set it
func reportTimestamp(report *SharedReport, now time.Time) time.Time {
	if report.LastUpdated <= 0 {
		return now
	}
	sec := int64(report.LastUpdated)
	nsec := int64((report.LastUpdated - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
