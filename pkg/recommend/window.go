// Package recommend implements the scoring engine: it aggregates a
// window of scrobbles into per-song, per-artist, and per-album counts
// and ranks songs by a fixed weighted score.
package recommend

import (
	"errors"
	"fmt"
	"time"
)

// DefaultWindowDays is the trailing period considered when none is
// configured.
const DefaultWindowDays = 5

// Window bounds which scrobbles enter the aggregation. Both ends are
// inclusive. Location fixes the calendar-day boundary used for the
// consistency metric; "day" is ambiguous without it. Defaults to UTC,
// which keeps runs reproducible across machines.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// Trailing returns the window covering the last n days up to now,
// inclusive on both ends.
func Trailing(days int, now time.Time, loc *time.Location) Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return Window{
		Start:    now.Add(-time.Duration(days) * 24 * time.Hour),
		End:      now,
		Location: loc,
	}
}

// Validate reports window configuration errors before any computation
// starts. These are fatal to the invocation, not skipped records.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return errors.New("window bounds not set")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s before start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayKey maps a timestamp to its calendar day in the window's location.
func (w Window) DayKey(t time.Time) string {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
