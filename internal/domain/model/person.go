// Package model contains the domain entities and the snapshot they are projected into.
package model

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// DefaultWeeklyHours is the weekly capacity assumed when none is configured.
const DefaultWeeklyHours = 40

const daysPerYear = 365.25

// PersonStatus is the lifecycle state of a person.
type PersonStatus string

const (
	PersonActive     PersonStatus = "Active"
	PersonOffboarded PersonStatus = "Offboarded"
	PersonDeleted    PersonStatus = "Deleted"
)

// Skills maps a lower-cased skill name to a level. Level 0 means unspecified.
type Skills map[string]int

// NormalizeSkills lower-cases and trims skill names. Empty input yields nil so
// that snapshots compare equal regardless of how they were produced.
func NormalizeSkills(in map[string]int) Skills {
	if len(in) == 0 {
		return nil
	}
	out := make(Skills, len(in))
	for name, level := range in {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		out[key] = level
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Level returns the level recorded for a skill.
func (s Skills) Level(name string) (int, bool) {
	level, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return level, ok
}

// Names returns the skill names in alphabetical order.
func (s Skills) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

func (s Skills) String() string {
	parts := make([]string, 0, len(s))
	for _, name := range s.Names() {
		if s[name] > 0 {
			parts = append(parts, fmt.Sprintf("%s (%d)", name, s[name]))
			continue
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

// TimeOff is a closed range of days a person is unavailable.
type TimeOff struct {
	ID       string `json:"timeoff_id"`
	PersonID string `json:"person_id"`
	Start    Date   `json:"start_date"`
	End      Date   `json:"end_date"`
	Reason   string `json:"reason,omitempty"`
}

// Interval returns the days covered by the time-off entry.
func (t TimeOff) Interval() Interval { return Interval{From: t.Start, To: t.End} }

// Person is a member of the team.
type Person struct {
	ID                  string       `json:"person_id"`
	Name                string       `json:"name"`
	Email               string       `json:"email,omitempty"`
	ShortCode           string       `json:"short_code,omitempty"`
	Designation         string       `json:"designation,omitempty"`
	WeeklyCapacityHours float64      `json:"weekly_capacity_hours"`
	Skills              Skills       `json:"skills,omitempty"`
	ExperienceYears     float64      `json:"experience_years,omitempty"`
	ExperienceAsOf      *Date        `json:"experience_as_of,omitempty"`
	LastWorkingDay      *Date        `json:"last_working_day,omitempty"`
	Status              PersonStatus `json:"status"`
	TimeOff             []TimeOff    `json:"time_off,omitempty"`
	// AddedEvent is the id of the event that created this incarnation.
	AddedEvent uint64 `json:"added_event,omitempty"`
}

// Live reports whether the person is visible to snapshot consumers.
func (p Person) Live() bool { return p.Status != PersonDeleted }

// AvailableOn reports whether d is on or before the person's last working day.
func (p Person) AvailableOn(d Date) bool {
	return p.LastWorkingDay == nil || d <= *p.LastWorkingDay
}

// TimeOffIntervals returns the raw (unmerged) time-off ranges.
func (p Person) TimeOffIntervals() []Interval {
	out := make([]Interval, 0, len(p.TimeOff))
	for _, t := range p.TimeOff {
		out = append(out, t.Interval())
	}
	return out
}

// ExperienceOn returns the years of experience on d, counting time elapsed since
// the recorded figure was captured. Rounded to one decimal.
func (p Person) ExperienceOn(d Date) float64 {
	if p.ExperienceAsOf == nil || d <= *p.ExperienceAsOf {
		return p.ExperienceYears
	}
	years := p.ExperienceYears + float64(d-*p.ExperienceAsOf)/daysPerYear
	return math.Round(years*10) / 10
}

// Clone returns a deep copy of the person.
func (p Person) Clone() Person {
	out := p
	out.Skills = maps.Clone(p.Skills)
	out.TimeOff = slices.Clone(p.TimeOff)
	out.ExperienceAsOf = cloneDate(p.ExperienceAsOf)
	out.LastWorkingDay = cloneDate(p.LastWorkingDay)
	return out
}

// ShortCode derives a short code from a name: the first n letters of the first
// word, capitalised, followed by the initial of the last word. A numeric suffix
// is appended until the code is not in taken (compared case-insensitively).
func ShortCode(name string, n int, taken map[string]bool) string {
	parts := strings.Fields(name)
	base := "CONS"
	if len(parts) > 0 {
		first := []rune(parts[0])
		if len(first) > n {
			first = first[:n]
		}
		base = strings.ToUpper(string(first[:1])) + strings.ToLower(string(first[1:]))
		if len(parts) > 1 {
			base += strings.ToUpper(string([]rune(parts[len(parts)-1])[:1]))
		}
	}
	code := base
	for i := 1; taken[strings.ToUpper(code)]; i++ {
		code = fmt.Sprintf("%s%d", base, i)
	}
	return code
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
