package screenpaw

import (
	"context"
	"fmt"
	"sync"
)

// StreakEngine derives pass/fail streaks from the ledger's day outcomes.
// It holds no state of its own beyond a cached last-computed record kept
// for display performance; every call recomputes from history.
type StreakEngine struct {
	storage Storage

	mu     sync.Mutex
	cached StreakRecord
}

// NewStreakEngine creates a streak engine over the given persistence
func NewStreakEngine(storage Storage) *StreakEngine {
	return &StreakEngine{storage: storage}
}

// Streak recomputes the current and longest streaks from day outcomes.
// The current streak counts consecutive most-recent evaluated days without
// a failure; a failure day resets it, and a gap in evaluated days breaks it.
func (s *StreakEngine) Streak(ctx context.Context) (StreakRecord, error) {
	outcomes, err := s.storage.ListOutcomes(ctx)
	if err != nil {
		return StreakRecord{}, fmt.Errorf("failed to list outcomes: %w", err)
	}

	record := computeStreaks(outcomes)

	s.mu.Lock()
	s.cached = record
	s.mu.Unlock()
	return record, nil
}

// Cached returns the last computed record without touching storage
func (s *StreakEngine) Cached() StreakRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached
}

// computeStreaks folds outcomes (ordered oldest first) into a StreakRecord
func computeStreaks(outcomes []*DayOutcome) StreakRecord {
	var record StreakRecord
	run := 0
	prevDay := ""

	for _, o := range outcomes {
		if prevDay != "" && daysBetween(prevDay, o.Day) != 1 {
			// Unevaluated days in between break the run
			run = 0
		}
		if o.Failed {
			run = 0
		} else {
			run++
			if run > record.LongestStreak {
				record.LongestStreak = run
			}
		}
		prevDay = o.Day
		record.LastEvaluatedDay = o.Day
	}

	record.CurrentStreak = run
	return record
}
