package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Window bounds a listing to entries created within a trailing duration.
// The zero value is unbounded.
type Window time.Duration

const (
	Unbounded Window = 0
	Weekly    Window = Window(7 * 24 * time.Hour)
	Monthly   Window = Window(30 * 24 * time.Hour)
)

// ParseWindow accepts "weekly", "monthly" and "all" (or empty).
func ParseWindow(raw string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", All, "alltime", "all-time":
		return Unbounded, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	}
	return Unbounded, fmt.Errorf("unknown window %q", raw)
}

// String returns the canonical name.
func (w Window) String() string {
	switch w {
	case Unbounded:
		return All
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	}
	return time.Duration(w).String()
}

// Contains reports whether e belongs to the window at now. Unbounded windows
// contain everything; bounded windows exclude entries without a timestamp.
func (w Window) Contains(e Entry, now time.Time) bool {
	if w <= 0 {
		return true
	}
	ts, ok := e.Timestamp()
	if !ok {
		return false
	}
	return ts.After(now.Add(-time.Duration(w)))
}
