// Package timeutil parses "HH:MM-HH:MM" trading session windows and
// answers whether a given instant falls inside one, matching the
// original system's utils/time_utils.py.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Seoul is the trading timezone everywhere in this system.
var Seoul = mustLoadLocation("Asia/Seoul")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, 9*60*60)
	}
	return loc
}

// Window is a parsed "HH:MM-HH:MM" range, inclusive of both endpoints.
type Window struct {
	StartHour, StartMin int
	EndHour, EndMin     int
}

// ParseWindow parses "HH:MM-HH:MM". Returns an error if malformed.
func ParseWindow(s string) (Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("timeutil: malformed window %q", s)
	}
	sh, sm, err := parseClock(parts[0])
	if err != nil {
		return Window{}, err
	}
	eh, em, err := parseClock(parts[1])
	if err != nil {
		return Window{}, err
	}
	return Window{StartHour: sh, StartMin: sm, EndHour: eh, EndMin: em}, nil
}

func parseClock(s string) (hour, min int, err error) {
	if _, scanErr := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hour, &min); scanErr != nil {
		return 0, 0, fmt.Errorf("timeutil: malformed clock %q: %w", s, scanErr)
	}
	return hour, min, nil
}

// Contains reports whether t's wall-clock time (in t's own location)
// falls within [start, end] of the window.
func (w Window) Contains(t time.Time) bool {
	mins := t.Hour()*60 + t.Minute()
	start := w.StartHour*60 + w.StartMin
	end := w.EndHour*60 + w.EndMin
	return mins >= start && mins <= end
}

// InAnyWindow reports whether now falls inside any of the given
// "HH:MM-HH:MM" window strings. Malformed windows are skipped.
func InAnyWindow(now time.Time, windows []string) bool {
	for _, ws := range windows {
		w, err := ParseWindow(ws)
		if err != nil {
			continue
		}
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// Now returns the current instant in the trading timezone.
func Now() time.Time {
	return time.Now().In(Seoul)
}

// CandleOpenTime floors t to the start of its unit-minute bucket, e.g.
// a 5-minute candle opening at 09:07 aligns to 09:05.
func CandleOpenTime(t time.Time, unitMinutes int) time.Time {
	if unitMinutes <= 0 {
		return t
	}
	bucket := (t.Minute() / unitMinutes) * unitMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), bucket, 0, 0, t.Location())
}
