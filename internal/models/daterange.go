package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is an inclusive span of calendar days. Start and End are UTC
// midnights; End covers its whole day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseDateRange parses both bounds. It does not reject start after end;
// such a range is valid and simply selects nothing.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: s, End: e}, nil
}

// Empty reports whether the range selects no day at all.
func (r DateRange) Empty() bool {
	return r.Start.After(r.End)
}

// Contains reports whether t falls in [Start 00:00, End+1day).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.Until())
}

// Until is the exclusive upper instant of the range.
func (r DateRange) Until() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Clamp limits the range to [first, last]. An empty range stays empty.
func (r DateRange) Clamp(first, last time.Time) DateRange {
	first, last = Day(first), Day(last)
	out := r
	if out.Start.Before(first) {
		out.Start = first
	}
	if out.End.After(last) {
		out.End = last
	}
	if r.Empty() {
		return r
	}
	return out
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"start": r.Start.Format(DateLayout),
		"end":   r.End.Format(DateLayout),
	})
}
