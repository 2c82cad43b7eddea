package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire format for dates in the journal and snapshot files.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Date is a civil calendar day, counted in days from 1970-01-01.
// Dates carry no time zone; all arithmetic is plain integer arithmetic.
type Date int32

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	unix := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
	days := unix / secondsPerDay
	if unix%secondsPerDay < 0 {
		days--
	}
	return Date(days)
}

// ParseDate parses an ISO (YYYY-MM-DD) date.
func ParseDate(s string) (Date, error) {
	return ParseDateLayout(DateLayout, s)
}

// ParseDateLayout parses s with a Go time layout.
func ParseDateLayout(layout, s string) (Date, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// MustDate parses an ISO date and panics on failure. Intended for tests and constants.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns the date n days later (or earlier when n < 0).
func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

// StartOfWeek returns the Monday on or before d.
func (d Date) StartOfWeek() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date {
	t := d.Time()
	return NewDate(t.Year(), t.Month(), 1)
}

// AddMonths returns the first day of the month n months after d's month.
func (d Date) AddMonths(n int) Date {
	t := d.Time()
	return DateOf(time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

// Format renders the date with a Go time layout.
func (d Date) Format(layout string) string {
	return d.Time().Format(layout)
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Interval is a closed range of days [From, To]. An interval with To < From is empty.
type Interval struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// NewInterval builds a non-empty interval, rejecting to < from.
func NewInterval(from, to Date) (Interval, error) {
	if to < from {
		return Interval{}, fmt.Errorf("%w: %s is before %s", ErrInvalidInterval, to, from)
	}
	return Interval{From: from, To: to}, nil
}

// Empty reports whether the interval contains no days.
func (i Interval) Empty() bool { return i.To < i.From }

// Days returns the number of calendar days in the interval.
func (i Interval) Days() int {
	if i.Empty() {
		return 0
	}
	return int(i.To-i.From) + 1
}

// Contains reports whether d falls inside the interval.
func (i Interval) Contains(d Date) bool { return d >= i.From && d <= i.To }

// Intersect returns the overlap of two intervals, possibly empty.
func (i Interval) Intersect(o Interval) Interval {
	out := Interval{From: max(i.From, o.From), To: min(i.To, o.To)}
	if out.Empty() {
		return Interval{From: out.From, To: out.From - 1}
	}
	return out
}

// Overlaps reports whether the intervals share at least one day.
func (i Interval) Overlaps(o Interval) bool { return !i.Intersect(o).Empty() }

func (i Interval) String() string {
	if i.Empty() {
		return "(empty)"
	}
	return i.From.String() + ".." + i.To.String()
}

// MergeIntervals returns the union of the given intervals as a sorted list of
// disjoint, non-adjacent intervals. Empty inputs are dropped.
func MergeIntervals(in []Interval) []Interval {
	items := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			items = append(items, iv)
		}
	}
	if len(items) == 0 {
		return nil
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].From != items[b].From {
			return items[a].From < items[b].From
		}
		return items[a].To < items[b].To
	})
	merged := []Interval{items[0]}
	for _, iv := range items[1:] {
		last := &merged[len(merged)-1]
		if iv.From <= last.To+1 {
			last.To = max(last.To, iv.To)
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
