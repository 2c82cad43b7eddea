package model

// Allocation assigns a person to a project over a closed date range.
// Withdrawal does not remove the record: days on or after WithdrawnOn simply
// stop counting.
type Allocation struct {
	ID           string  `json:"allocation_id"`
	PersonID     string  `json:"person_id"`
	ProjectID    string  `json:"project_id"`
	Start        Date    `json:"start_date"`
	End          Date    `json:"end_date"`
	HoursPerWeek float64 `json:"allocated_hours_per_week"`
	WithdrawnOn  *Date   `json:"withdrawn_on,omitempty"`
	Lead         bool    `json:"is_lead,omitempty"`
	// Event is the id of the Allocated event.
	Event uint64 `json:"event,omitempty"`
}

// Interval returns the booked range, ignoring withdrawal.
func (a Allocation) Interval() Interval { return Interval{From: a.Start, To: a.End} }

// Effective returns the days the allocation still counts for. It is empty when
// the allocation was withdrawn on or before its start.
func (a Allocation) Effective() Interval {
	iv := a.Interval()
	if a.WithdrawnOn != nil && *a.WithdrawnOn-1 < iv.To {
		iv.To = *a.WithdrawnOn - 1
	}
	return iv
}

// Withdrawn reports whether an Unallocated event has been applied.
func (a Allocation) Withdrawn() bool { return a.WithdrawnOn != nil }

// Clone returns a deep copy of the allocation.
func (a Allocation) Clone() Allocation {
	out := a
	out.WithdrawnOn = cloneDate(a.WithdrawnOn)
	return out
}
