package game

import "time"

// RemainingSeconds derives how much of the card timer is left. The start
// timestamp is the single source of truth so the value survives reconnects;
// nothing ever stores a countdown.
func RemainingSeconds(timeLimitMinutes int, startedAt *time.Time, now time.Time) int {
	if startedAt == nil {
		return timeLimitMinutes * 60
	}
	remaining := timeLimitMinutes*60 - int(now.Sub(*startedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether a window of the given seconds has fully elapsed.
func Expired(limitSeconds int, startedAt *time.Time, now time.Time) bool {
	if startedAt == nil {
		return false
	}
	return now.Sub(*startedAt) >= time.Duration(limitSeconds)*time.Second
}
