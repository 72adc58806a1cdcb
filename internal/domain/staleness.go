package domain

import "time"

const day = 24 * time.Hour

// DaysSinceMovement returns whole days elapsed since the task last moved.
// A missing timestamp or a timestamp in the future yields 0.
func DaysSinceMovement(t Task, now time.Time) int {
	return wholeDaysSince(t.LastMovementAt, now)
}

// IsStale reports whether an open task has gone longer than its cadence without movement.
// Missing cadence or timestamp data never counts as stale.
func IsStale(t Task, now time.Time) bool {
	if t.Status != StatusOpen || t.CadenceDays <= 0 || t.LastMovementAt.IsZero() {
		return false
	}
	return DaysSinceMovement(t, now) > t.CadenceDays
}

// DaysPastCadence returns how many days a stale task is beyond its cadence.
func DaysPastCadence(t Task, now time.Time) int {
	if !IsStale(t, now) {
		return 0
	}
	return DaysSinceMovement(t, now) - t.CadenceDays
}

func wholeDaysSince(ts, now time.Time) int {
	if ts.IsZero() {
		return 0
	}
	elapsed := now.Sub(ts)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}
