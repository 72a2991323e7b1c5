// Package policy holds the pure rules that gate session mutation: the
// time-based expiry window and the role-based access check. Nothing here
// touches storage or caches a decision.
package policy

import (
	"fmt"
	"time"
)

// ExpiryWindow is how long after SessionTime a session's records stay mutable.
const ExpiryWindow = 6 * time.Hour

// IsExpired reports whether the mutation window of a session that started at
// sessionTime has elapsed as of now. Once true it stays true for every later now.
func IsExpired(sessionTime, now time.Time) bool {
	return now.Sub(sessionTime) >= ExpiryWindow
}

// ExpiresAt returns the instant the session becomes immutable.
func ExpiresAt(sessionTime time.Time) time.Time {
	return sessionTime.Add(ExpiryWindow)
}

// Remaining returns the time left in the mutation window, never negative.
// A forward-dated session reports more than ExpiryWindow.
func Remaining(sessionTime, now time.Time) time.Duration {
	d := ExpiresAt(sessionTime).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders a remaining duration for display: "5h 12m",
// "42m", "<1m", or "expired".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	if d < time.Minute {
		return "<1m"
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
