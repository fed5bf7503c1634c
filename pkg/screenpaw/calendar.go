package screenpaw

import "time"

// dayLayout is the stable key format for calendar days and week starts
const dayLayout = "2006-01-02"

// DayKey returns the calendar-day key for t in t's location
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// WeekStartKey returns the key of the Monday that starts t's week,
// in t's location
func WeekStartKey(t time.Time) string {
	return DayKey(weekStart(t))
}

// startOfDay returns midnight of t's calendar day in t's location
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns midnight of the Monday of t's week in t's location
func weekStart(t time.Time) time.Time {
	// time.Weekday counts Sunday as 0; shift so Monday is 0
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -daysSinceMonday)
}

// parseDay parses a day key back into midnight UTC. Keys compare
// lexicographically in chronological order, so UTC is fine for arithmetic
// between keys.
func parseDay(day string) (time.Time, error) {
	return time.Parse(dayLayout, day)
}

// prevDayKey returns the key of the day before the given day key
func prevDayKey(day string) string {
	t, err := parseDay(day)
	if err != nil {
		return ""
	}
	return DayKey(t.AddDate(0, 0, -1))
}

// nextDayKey returns the key of the day after the given day key
func nextDayKey(day string) string {
	t, err := parseDay(day)
	if err != nil {
		return ""
	}
	return DayKey(t.AddDate(0, 0, 1))
}

// weekStartOfDay returns the week-start key for a day key
func weekStartOfDay(day string) string {
	t, err := parseDay(day)
	if err != nil {
		return ""
	}
	return WeekStartKey(t)
}

// daysBetween returns how many calendar days separate two day keys
// (positive when b is after a)
func daysBetween(a, b string) int {
	ta, errA := parseDay(a)
	tb, errB := parseDay(b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}
