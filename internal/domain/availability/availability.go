// Package availability computes a person's capacity, time-off and allocated
// hours over an arbitrary date interval.
package availability

import (
	"github.com/okian/rostr/internal/domain/model"
)

// overEpsilon absorbs float noise when comparing allocated hours to capacity.
const overEpsilon = 1e-9

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithConvention sets the working-day convention used for pro-rating.
func WithConvention(c Convention) Option {
	return func(calc *Calculator) {
		if c.DaysPerWeek() > 0 {
			calc.convention = c
		}
	}
}

// Result is the availability of one person over one interval.
type Result struct {
	PersonID string
	Interval model.Interval
	// Usable is Interval clipped at the person's last working day.
	Usable model.Interval
	// Departed is set when the whole interval lies after the last working day.
	Departed bool

	GrossHours     float64 // pro-rated weekly capacity over Usable
	TimeOffHours   float64 // capacity lost to the union of time-off days
	CapacityHours  float64 // GrossHours - TimeOffHours
	AllocatedHours float64
	FreeHours      float64
	// ByProject splits AllocatedHours by project id.
	ByProject     map[string]float64
	OverAllocated bool
}

// Calculator evaluates availability against a snapshot passed on every call.
type Calculator struct {
	convention Convention
}

// NewCalculator creates a calculator, Monday to Friday unless configured otherwise.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{convention: DefaultConvention()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convention returns the working-day convention in use.
func (c *Calculator) Convention() Convention { return c.convention }

// Capacity computes availability for a live person over iv. An empty interval
// yields a zero result.
func (c *Calculator) Capacity(s *model.Snapshot, personID string, iv model.Interval) (Result, error) {
	person, ok := s.Person(personID)
	if !ok {
		return Result{}, &model.UnknownEntityError{Kind: model.KindPerson, ID: personID}
	}

	res := Result{
		PersonID:  personID,
		Interval:  iv,
		Usable:    c.usable(person, iv),
		ByProject: map[string]float64{},
	}
	res.Departed = !iv.Empty() && res.Usable.Empty()
	if res.Usable.Empty() {
		return res, nil
	}

	res.GrossHours = c.convention.Hours(person.WeeklyCapacityHours, res.Usable)
	res.TimeOffHours = c.timeOffHours(person, res.Usable)
	res.CapacityHours = res.GrossHours - res.TimeOffHours

	for _, a := range s.AllocationsFor(personID) {
		project, ok := s.Project(a.ProjectID)
		if !ok || !project.Contributes() {
			continue
		}
		overlap := a.Effective().Intersect(res.Usable)
		if overlap.Empty() {
			continue
		}
		hours := c.convention.Hours(a.HoursPerWeek, overlap)
		res.ByProject[a.ProjectID] += hours
		res.AllocatedHours += hours
	}

	res.FreeHours = max(res.CapacityHours-res.AllocatedHours, 0)
	res.OverAllocated = res.AllocatedHours > res.CapacityHours+overEpsilon
	return res, nil
}

// usable clips iv at the last working day. Allocations past that day are
// ignored for calculation only; the snapshot is not touched.
func (c *Calculator) usable(p model.Person, iv model.Interval) model.Interval {
	if p.LastWorkingDay == nil || iv.To <= *p.LastWorkingDay {
		return iv
	}
	return iv.Intersect(model.Interval{From: iv.From, To: *p.LastWorkingDay})
}

// timeOffHours merges overlapping entries first so a day is never subtracted twice.
func (c *Calculator) timeOffHours(p model.Person, usable model.Interval) float64 {
	var hours float64
	for _, off := range model.MergeIntervals(p.TimeOffIntervals()) {
		hours += c.convention.Hours(p.WeeklyCapacityHours, off.Intersect(usable))
	}
	return hours
}

// TimeOffDays counts the working days in iv covered by the union of the
// person's time-off entries.
func (c *Calculator) TimeOffDays(p model.Person, iv model.Interval) int {
	var days int
	for _, off := range model.MergeIntervals(p.TimeOffIntervals()) {
		days += c.convention.WorkingDaysIn(off.Intersect(iv))
	}
	return days
}
