package screenpaw

import "time"

// Metrics defines the interface for tracking engine operations.
type Metrics interface {
	// RecordPoll records one read of the external shared store.
	RecordPoll(duration time.Duration, err error)

	// RecordSnapshotAccepted records an accepted (changed) usage snapshot.
	RecordSnapshotAccepted(source Source)

	// RecordDegraded records a poll that fell back to local estimates.
	RecordDegraded()

	// RecordPenalty records an over-limit penalty and its credit amount.
	RecordPenalty(amount int)

	// RecordCreditSpend records a fee charge (extension, unblock) and
	// whether it was waived.
	RecordCreditSpend(reason Reason, amount int, waived bool)

	// RecordStorageOperation records the duration and status of a storage
	// operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordPoll(duration time.Duration, err error)                       {}
func (n *NoopMetrics) RecordSnapshotAccepted(source Source)                               {}
func (n *NoopMetrics) RecordDegraded()                                                    {}
func (n *NoopMetrics) RecordPenalty(amount int)                                           {}
func (n *NoopMetrics) RecordCreditSpend(reason Reason, amount int, waived bool)           {}
func (n *NoopMetrics) RecordStorageOperation(op string, duration time.Duration, e error)  {}
