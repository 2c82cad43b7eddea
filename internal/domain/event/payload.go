package event

import "github.com/okian/rostr/internal/domain/model"

// Payload is implemented by every event variant. Edit variants carry pointers so
// that only the fields present in the journal are merged.
type Payload interface {
	EventType() Type
}

// PersonAdded captures the payload for PersonAdded events.
type PersonAdded struct {
	PersonID            string         `json:"person_id"`
	Name                string         `json:"name"`
	Email               string         `json:"email,omitempty"`
	ShortCode           string         `json:"short_code,omitempty"`
	Designation         string         `json:"designation,omitempty"`
	WeeklyCapacityHours float64        `json:"weekly_capacity_hours"`
	Skills              map[string]int `json:"skills,omitempty"`
	ExperienceYears     float64        `json:"experience_years,omitempty"`
	ExperienceAsOf      *model.Date    `json:"experience_as_of,omitempty"`
}

// PersonEdited captures the payload for PersonEdited events.
type PersonEdited struct {
	PersonID            string          `json:"person_id"`
	Name                *string         `json:"name,omitempty"`
	Email               *string         `json:"email,omitempty"`
	Designation         *string         `json:"designation,omitempty"`
	WeeklyCapacityHours *float64        `json:"weekly_capacity_hours,omitempty"`
	Skills              *map[string]int `json:"skills,omitempty"`
	ExperienceYears     *float64        `json:"experience_years,omitempty"`
	ExperienceAsOf      *model.Date     `json:"experience_as_of,omitempty"`
}

// PersonOffboarded captures the payload for PersonOffboarded events.
type PersonOffboarded struct {
	PersonID       string     `json:"person_id"`
	LastWorkingDay model.Date `json:"last_working_day"`
}

// PersonDeleted captures the payload for PersonDeleted events.
type PersonDeleted struct {
	PersonID string `json:"person_id"`
	Reason   string `json:"reason,omitempty"`
}

// TimeOffLogged captures the payload for TimeOffLogged events.
type TimeOffLogged struct {
	TimeOffID string     `json:"timeoff_id"`
	PersonID  string     `json:"person_id"`
	StartDate model.Date `json:"start_date"`
	EndDate   model.Date `json:"end_date"`
	Reason    string     `json:"reason,omitempty"`
}

// ProjectAdded captures the payload for ProjectAdded events.
type ProjectAdded struct {
	ProjectID        string              `json:"project_id"`
	Name             string              `json:"name"`
	ShortCode        string              `json:"short_code,omitempty"`
	Description      string              `json:"description,omitempty"`
	Status           model.ProjectStatus `json:"status"`
	WinProbability   float64             `json:"win_probability"`
	TotalHoursNeeded *float64            `json:"total_hours_needed,omitempty"`
	RequiredSkills   map[string]int      `json:"required_skills,omitempty"`
}

// ProjectEdited captures the payload for ProjectEdited events.
type ProjectEdited struct {
	ProjectID        string               `json:"project_id"`
	Name             *string              `json:"name,omitempty"`
	Description      *string              `json:"description,omitempty"`
	Status           *model.ProjectStatus `json:"status,omitempty"`
	WinProbability   *float64             `json:"win_probability,omitempty"`
	TotalHoursNeeded *float64             `json:"total_hours_needed,omitempty"`
	RequiredSkills   *map[string]int      `json:"required_skills,omitempty"`
}

// ProjectDeleted captures the payload for ProjectDeleted events.
type ProjectDeleted struct {
	ProjectID string `json:"project_id"`
}

// Allocated captures the payload for Allocated events.
type Allocated struct {
	AllocationID string     `json:"allocation_id"`
	PersonID     string     `json:"person_id"`
	ProjectID    string     `json:"project_id"`
	StartDate    model.Date `json:"start_date"`
	EndDate      model.Date `json:"end_date"`
	HoursPerWeek float64    `json:"allocated_hours_per_week"`
	Lead         bool       `json:"is_lead,omitempty"`
}

// Unallocated captures the payload for Unallocated events. The allocation stops
// counting from WithdrawnOn onwards.
type Unallocated struct {
	AllocationID string     `json:"allocation_id"`
	WithdrawnOn  model.Date `json:"withdrawn_on"`
}

func (PersonAdded) EventType() Type      { return TypePersonAdded }
func (PersonEdited) EventType() Type     { return TypePersonEdited }
func (PersonOffboarded) EventType() Type { return TypePersonOffboarded }
func (PersonDeleted) EventType() Type    { return TypePersonDeleted }
func (TimeOffLogged) EventType() Type    { return TypeTimeOffLogged }
func (ProjectAdded) EventType() Type     { return TypeProjectAdded }
func (ProjectEdited) EventType() Type    { return TypeProjectEdited }
func (ProjectDeleted) EventType() Type   { return TypeProjectDeleted }
func (Allocated) EventType() Type        { return TypeAllocated }
func (Unallocated) EventType() Type      { return TypeUnallocated }
