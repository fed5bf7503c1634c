package screenpaw

import "time"

// Clock supplies the current device-local time. All day and week boundaries
// are calendar boundaries in the clock's location, so tests can pin both the
// instant and the zone.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real system clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
