package screenpaw

import "errors"

var (
	// ErrDuplicateApp is returned when adding a goal for an app that is
	// already monitored
	ErrDuplicateApp = errors.New("app already monitored")

	// ErrUnknownApp is returned for actions referencing an unregistered app
	ErrUnknownApp = errors.New("unknown app")

	// ErrInvalidLimit is returned for non-positive daily limits
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrLimitNotIncreasing is returned when an extension does not raise the
	// effective limit for the day
	ErrLimitNotIncreasing = errors.New("limit not increasing")

	// ErrInsufficientCredits is returned when a spend is attempted with an
	// empty balance and no fee waiver
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAppNotBlocked is returned when unblocking an app that is not
	// currently over its limit
	ErrAppNotBlocked = errors.New("app not blocked")

	// ErrFeeAlreadyPaid is returned when the accountability fee was already
	// paid today
	ErrFeeAlreadyPaid = errors.New("accountability fee already paid today")

	// ErrInvariantViolation indicates the ledger balance no longer matches
	// its transaction history. This is a bug, never recovered silently.
	ErrInvariantViolation = errors.New("ledger invariant violation")

	// ErrLedgerHalted is returned for mutations after an invariant violation
	ErrLedgerHalted = errors.New("ledger halted after invariant violation")

	// ErrStorageUnavailable is returned when storage is missing or unusable
	ErrStorageUnavailable = errors.New("storage unavailable")
)
