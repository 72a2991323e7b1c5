// Package schedule resolves a net's recurring cron schedule into concrete
// session start times.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// maxOccurrences bounds the walk through occurrences inside one window.
const maxOccurrences = 1024

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse parses a 5-field cron expression.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return sched, nil
}

// Current returns the most recent occurrence that started less than window
// before now, i.e. the net currently in progress. When no occurrence
// falls inside the window it returns the next upcoming occurrence. Times are
// evaluated in now's location.
func Current(sched cron.Schedule, now time.Time, window time.Duration) time.Time {
	var current time.Time
	t := sched.Next(now.Add(-window))
	for i := 0; i < maxOccurrences && !t.IsZero() && !t.After(now); i++ {
		current = t
		t = sched.Next(t)
	}
	if !current.IsZero() {
		return current
	}
	return sched.Next(now)
}

// Next returns the first occurrence strictly after now.
func Next(sched cron.Schedule, now time.Time) time.Time {
	return sched.Next(now)
}
