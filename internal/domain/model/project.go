package model

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
)

// ProjectStatus is the pipeline state of a project.
type ProjectStatus string

const (
	ProjectProposed  ProjectStatus = "Proposed"
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectDropped   ProjectStatus = "Dropped"
	ProjectDeleted   ProjectStatus = "Deleted"
)

// ParseProjectStatus accepts the user-facing statuses case-insensitively.
// "Lost" is accepted as an alias for Dropped. Deleted is not a settable status.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proposed":
		return ProjectProposed, nil
	case "active":
		return ProjectActive, nil
	case "completed":
		return ProjectCompleted, nil
	case "dropped", "lost":
		return ProjectDropped, nil
	default:
		return "", fmt.Errorf("%w: project status %q", ErrInvalidStatus, s)
	}
}

// Project is a piece of work people are allocated to.
type Project struct {
	ID               string        `json:"project_id"`
	Name             string        `json:"name"`
	ShortCode        string        `json:"short_code,omitempty"`
	Description      string        `json:"description,omitempty"`
	Status           ProjectStatus `json:"status"`
	WinProbability   float64       `json:"win_probability"`
	TotalHoursNeeded *float64      `json:"total_hours_needed,omitempty"`
	RequiredSkills   Skills        `json:"required_skills,omitempty"`
	AddedEvent       uint64        `json:"added_event,omitempty"`
}

// Live reports whether the project is visible to snapshot consumers.
func (p Project) Live() bool { return p.Status != ProjectDeleted }

// Contributes reports whether allocations on the project count towards utilization.
func (p Project) Contributes() bool {
	return p.Live() && p.Status != ProjectDropped
}

// Probability returns the effective win probability: certain for Active and
// Completed work, zero for dropped or deleted projects.
func (p Project) Probability() float64 {
	switch p.Status {
	case ProjectActive, ProjectCompleted:
		return 1
	case ProjectDropped, ProjectDeleted:
		return 0
	default:
		return min(max(p.WinProbability, 0), 1)
	}
}

// Confirmed reports whether the project's work is certain.
func (p Project) Confirmed() bool { return p.Probability() == 1 }

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	out := p
	out.RequiredSkills = maps.Clone(p.RequiredSkills)
	if p.TotalHoursNeeded != nil {
		v := *p.TotalHoursNeeded
		out.TotalHoursNeeded = &v
	}
	return out
}

// MatchesRequirements reports whether the person holds every required skill at
// or above its minimum level. Projects without requirements match everyone.
func (p Project) MatchesRequirements(person Person) bool {
	for name, minLevel := range p.RequiredSkills {
		level, ok := person.Skills.Level(name)
		if !ok || level < minLevel {
			return false
		}
	}
	return true
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ProjectID turns a project name into a slug id that is not in taken.
// Collisions get "-2", "-3", ... suffixes.
func ProjectID(name string, taken map[string]bool) string {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "project"
	}
	id := base
	for i := 2; taken[id]; i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	return id
}
