// Package backoff decides when a failed page is eligible for another
// attempt. Short streaks retry hourly; once a page has failed five times in
// a row it is assumed structurally broken (deleted or private) and parked
// for thirty days. Accounts can become public again, so nothing is ever
// excluded permanently.
package backoff

import "time"

const (
	FailureStreakThreshold = 5
	ShortRetryDelay        = time.Hour
	LongRetryDelay         = 30 * 24 * time.Hour
)

// RetryDelay returns the wait applied after a failure given the current
// consecutive failure streak.
func RetryDelay(streak int) time.Duration {
	if streak >= FailureStreakThreshold {
		return LongRetryDelay
	}
	return ShortRetryDelay
}

// NextEligibleAt returns the earliest time another attempt may be made.
func NextEligibleAt(streak int, lastAttemptAt time.Time) time.Time {
	return lastAttemptAt.Add(RetryDelay(streak))
}

// Eligible reports whether a page may be attempted at now. A page that has
// never been attempted is always eligible.
func Eligible(streak int, lastAttemptAt *time.Time, now time.Time) bool {
	if lastAttemptAt == nil {
		return true
	}
	return !now.Before(NextEligibleAt(streak, *lastAttemptAt))
}
