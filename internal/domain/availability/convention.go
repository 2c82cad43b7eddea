package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/rostr/internal/domain/model"
)

const daysPerWeek = 7

// Convention defines which weekdays carry capacity. Weekly hours are spread
// evenly over the working days of a week.
type Convention struct {
	working [daysPerWeek]bool
	perWeek int
}

// DefaultConvention is a Monday to Friday week.
func DefaultConvention() Convention {
	c, _ := NewConvention(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	return c
}

// NewConvention builds a convention from working weekdays.
func NewConvention(days ...time.Weekday) (Convention, error) {
	var c Convention
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return Convention{}, fmt.Errorf("%w: weekday %d", ErrInvalidConvention, d)
		}
		if !c.working[d] {
			c.working[d] = true
			c.perWeek++
		}
	}
	if c.perWeek == 0 {
		return Convention{}, fmt.Errorf("%w: no working days", ErrInvalidConvention)
	}
	return c, nil
}

// ParseConvention builds a convention from weekday names ("monday", "Tue", ...).
func ParseConvention(names []string) (Convention, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		d, err := parseWeekday(name)
		if err != nil {
			return Convention{}, err
		}
		days = append(days, d)
	}
	return NewConvention(days...)
}

// DaysPerWeek returns the number of working days in a week.
func (c Convention) DaysPerWeek() int { return c.perWeek }

// IsWorkingDay reports whether d carries capacity.
func (c Convention) IsWorkingDay(d model.Date) bool { return c.working[d.Weekday()] }

// WorkingDaysIn counts the working days inside iv.
func (c Convention) WorkingDaysIn(iv model.Interval) int {
	days := iv.Days()
	if days == 0 {
		return 0
	}
	n := days / daysPerWeek * c.perWeek
	for d := iv.From.AddDays(days / daysPerWeek * daysPerWeek); d <= iv.To; d++ {
		if c.IsWorkingDay(d) {
			n++
		}
	}
	return n
}

// Hours pro-rates a weekly figure over the working days of iv.
func (c Convention) Hours(weekly float64, iv model.Interval) float64 {
	if c.perWeek == 0 {
		return 0
	}
	return weekly * float64(c.WorkingDaysIn(iv)) / float64(c.perWeek)
}

func parseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if len(key) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if strings.HasPrefix(full, key) {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidConvention, name)
}
