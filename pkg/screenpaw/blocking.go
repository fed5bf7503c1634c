package screenpaw

// ComputeBlockingState derives the enforcement state of one app for the
// current day. It is a pure function; the engine recomputes it on every
// snapshot and every ledger mutation instead of storing it.
//
// The accepted usage figure is monotonically non-decreasing within a day and
// the effective limit only moves up (through extensions), so over-limit is
// sticky without any stored flag: once usage has reached the limit, only an
// unblock or an extension past the usage can change the state.
//
//   - unblocked: a credit was spent on an unblock today; terminal for the
//     day, there is no further enforcement once access is bought back
//   - extended: the effective limit for today comes from an extension
func ComputeBlockingState(used, limit int, nearLimitRatio float64, unblocked, extended bool) BlockingState {
	if unblocked {
		return StateUnblockedPaid
	}
	if limit > 0 && used >= limit {
		return StateOverLimitBlocked
	}
	if extended {
		return StateExtendedActive
	}
	if limit > 0 && float64(used) >= nearLimitRatio*float64(limit) {
		return StateNearLimit
	}
	return StateActive
}
