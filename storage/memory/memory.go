// Package memory provides an in-memory implementation of the
// screenpaw.Storage and screenpaw.ReportStore interfaces.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// Storage implements screenpaw.Storage using in-memory maps
type Storage struct {
	mu        sync.RWMutex
	goals     map[string]*screenpaw.Goal
	plans     map[string]*screenpaw.WeeklyPlan
	snapshots map[string]*screenpaw.Snapshot
	outcomes  map[string]*screenpaw.DayOutcome
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		goals:     make(map[string]*screenpaw.Goal),
		plans:     make(map[string]*screenpaw.WeeklyPlan),
		snapshots: make(map[string]*screenpaw.Snapshot),
		outcomes:  make(map[string]*screenpaw.DayOutcome),
	}
}

// GetGoal implements screenpaw.Storage
func (s *Storage) GetGoal(ctx context.Context, appID string) (*screenpaw.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	goal, ok := s.goals[appID]
	if !ok {
		return nil, nil
	}
	goalCopy := *goal
	return &goalCopy, nil
}

// PutGoal implements screenpaw.Storage
func (s *Storage) PutGoal(ctx context.Context, goal *screenpaw.Goal) error {
	if goal == nil || goal.AppID == "" {
		return fmt.Errorf("invalid goal")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	goalCopy := *goal
	s.goals[goal.AppID] = &goalCopy
	return nil
}

// ListGoals implements screenpaw.Storage
func (s *Storage) ListGoals(ctx context.Context) ([]*screenpaw.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	goals := make([]*screenpaw.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		goalCopy := *g
		goals = append(goals, &goalCopy)
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].AppID < goals[j].AppID })
	return goals, nil
}

// GetPlan implements screenpaw.Storage
func (s *Storage) GetPlan(ctx context.Context, weekStart string) (*screenpaw.WeeklyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[weekStart]
	if !ok {
		return nil, nil
	}
	return copyPlan(plan), nil
}

// PutPlan implements screenpaw.Storage
func (s *Storage) PutPlan(ctx context.Context, plan *screenpaw.WeeklyPlan) error {
	if plan == nil || plan.WeekStart == "" {
		return fmt.Errorf("invalid plan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.plans[plan.WeekStart] = copyPlan(plan)
	return nil
}

// ListPlans implements screenpaw.Storage
func (s *Storage) ListPlans(ctx context.Context) ([]*screenpaw.WeeklyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]*screenpaw.WeeklyPlan, 0, len(s.plans))
	for _, p := range s.plans {
		plans = append(plans, copyPlan(p))
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].WeekStart < plans[j].WeekStart })
	return plans, nil
}

// GetSnapshot implements screenpaw.Storage
func (s *Storage) GetSnapshot(ctx context.Context, appID, day string) (*screenpaw.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapshotKey(appID, day)]
	if !ok {
		return nil, nil
	}
	snapCopy := *snap
	return &snapCopy, nil
}

// PutSnapshot implements screenpaw.Storage
func (s *Storage) PutSnapshot(ctx context.Context, snap *screenpaw.Snapshot) error {
	if snap == nil || snap.AppID == "" || snap.Day == "" {
		return fmt.Errorf("invalid snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snap
	s.snapshots[snapshotKey(snap.AppID, snap.Day)] = &snapCopy
	return nil
}

// ListSnapshots implements screenpaw.Storage
func (s *Storage) ListSnapshots(ctx context.Context, day string) ([]*screenpaw.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]*screenpaw.Snapshot, 0)
	for _, snap := range s.snapshots {
		if snap.Day == day {
			snapCopy := *snap
			snaps = append(snaps, &snapCopy)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].AppID < snaps[j].AppID })
	return snaps, nil
}

// GetOutcome implements screenpaw.Storage
func (s *Storage) GetOutcome(ctx context.Context, day string) (*screenpaw.DayOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.outcomes[day]
	if !ok {
		return nil, nil
	}
	return copyOutcome(outcome), nil
}

// PutOutcome implements screenpaw.Storage
func (s *Storage) PutOutcome(ctx context.Context, outcome *screenpaw.DayOutcome) error {
	if outcome == nil || outcome.Day == "" {
		return fmt.Errorf("invalid outcome")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[outcome.Day] = copyOutcome(outcome)
	return nil
}

// ListOutcomes implements screenpaw.Storage
func (s *Storage) ListOutcomes(ctx context.Context) ([]*screenpaw.DayOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcomes := make([]*screenpaw.DayOutcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		outcomes = append(outcomes, copyOutcome(o))
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Day < outcomes[j].Day })
	return outcomes, nil
}

// Clear removes all data (useful for testing)
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.goals = make(map[string]*screenpaw.Goal)
	s.plans = make(map[string]*screenpaw.WeeklyPlan)
	s.snapshots = make(map[string]*screenpaw.Snapshot)
	s.outcomes = make(map[string]*screenpaw.DayOutcome)
}

func snapshotKey(appID, day string) string {
	return fmt.Sprintf("%s:%s", day, appID)
}

func copyPlan(plan *screenpaw.WeeklyPlan) *screenpaw.WeeklyPlan {
	planCopy := *plan
	planCopy.Transactions = append([]screenpaw.Transaction(nil), plan.Transactions...)
	return &planCopy
}

func copyOutcome(outcome *screenpaw.DayOutcome) *screenpaw.DayOutcome {
	outcomeCopy := *outcome
	outcomeCopy.OverLimitApps = append([]string(nil), outcome.OverLimitApps...)
	return &outcomeCopy
}

// ReportStore is an in-memory stand-in for the external reporter's shared
// store. Tests use it to script what the sandboxed process would write,
// including read failures.
type ReportStore struct {
	mu     sync.RWMutex
	report *screenpaw.SharedReport
	err    error
}

// NewReportStore creates an empty in-memory report store
func NewReportStore() *ReportStore {
	return &ReportStore{}
}

// SetReport scripts the reporter's current figures
func (r *ReportStore) SetReport(report *screenpaw.SharedReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = report
	r.err = nil
}

// SetError makes subsequent reads fail, simulating an unreadable store
func (r *ReportStore) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// ReadReport implements screenpaw.ReportStore
func (r *ReportStore) ReadReport(ctx context.Context) (*screenpaw.SharedReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return nil, r.err
	}
	if r.report == nil {
		return &screenpaw.SharedReport{}, nil
	}
	reportCopy := *r.report
	reportCopy.TopApps = append([]screenpaw.AppReport(nil), r.report.TopApps...)
	return &reportCopy, nil
}
