package repository

import (
	"time"

	xutil "RiskPulse/pkg/util"
)

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Lookback returns the window of length d ending at now.
func Lookback(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d), To: now}
}

// NormalizeWindow parses optional bounds. A missing end defaults to now,
// a missing start to end minus def. Inverted bounds are swapped.
func NormalizeWindow(from, to string, def time.Duration, now time.Time) Window {
	end := xutil.ParseTimeDefault(to, now)
	start := xutil.ParseTimeDefault(from, end.Add(-def))
	if start.After(end) {
		start, end = end, start
	}
	return Window{From: start, To: end}
}

// Days returns the whole number of days the window spans, at least 1.
func (w Window) Days() int {
	d := int(w.To.Sub(w.From).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}
