package payroll

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// WINDOW - The time boundary for hours and revenue queries
// =============================================================================

// Window is an inclusive [Start, End] range. Both the hours ledger and the
// revenue lookup are scoped by the same window so their subtotals line up.
type Window struct {
	Start time.Time
	End   time.Time
}

// ContainsDate reports whether the calendar day of d lies within the
// calendar days spanned by the window.
func (w Window) ContainsDate(d time.Time) bool {
	day := Date(d)
	return !day.Before(Date(w.Start)) && !day.After(Date(w.End))
}

// Contains reports whether the instant t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidPeriod)
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod,
			w.End.Format(DateLayout), w.Start.Format(DateLayout))
	}
	return nil
}

func (w Window) String() string {
	return "[" + w.Start.Format(DateLayout) + ", " + w.End.Format(DateLayout) + "]"
}

// DateWindow spans whole calendar days from..to, inclusive.
func DateWindow(from, to time.Time) Window {
	return Window{Start: startOfDay(from), End: endOfDay(to)}
}

// =============================================================================
// PERIOD SELECTOR
// =============================================================================

type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

func ParsePeriodKind(s string) (PeriodKind, error) {
	switch k := PeriodKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", ErrInvalidPeriod, s)
	}
}

// WindowFor returns the day, week, month or year window containing ref.
// Weeks start on Sunday. An unknown kind falls back to the day window.
func WindowFor(kind PeriodKind, ref time.Time) Window {
	switch kind {
	case PeriodWeek:
		start := startOfDay(ref).AddDate(0, 0, -int(ref.Weekday()))
		return Window{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}

	case PeriodMonth:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		// Day 0 of the next month is the last day of this one.
		last := time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, ref.Location())
		return Window{Start: start, End: endOfDay(last)}

	case PeriodYear:
		return Window{
			Start: time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location()),
			End:   endOfDay(time.Date(ref.Year(), time.December, 31, 0, 0, 0, 0, ref.Location())),
		}

	default:
		return Window{Start: startOfDay(ref), End: endOfDay(ref)}
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
