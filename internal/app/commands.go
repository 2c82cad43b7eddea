package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

// DefaultTimeOffReason is recorded when a time-off entry has no reason.
const DefaultTimeOffReason = "PTO"

// DefaultProposedProbability is used for proposed projects added without one.
const DefaultProposedProbability = 0.5

// overAllocationHorizon caps how many weeks of a new allocation are checked.
const overAllocationHorizon = 104

// AddPerson adds a team member. The id defaults to the lower-cased email.
type AddPerson struct {
	ID              string         `json:"person_id" validate:"required_without=Email"`
	Name            string         `json:"name" validate:"required"`
	Email           string         `json:"email" validate:"omitempty,email"`
	Designation     string         `json:"designation"`
	WeeklyHours     *float64       `json:"weekly_capacity_hours"`
	Skills          map[string]int `json:"skills" validate:"dive,gte=0"`
	ExperienceYears float64        `json:"experience_years" validate:"gte=0"`
}

// EditPerson changes the fields that are set.
type EditPerson struct {
	Person          string          `json:"person" validate:"required"`
	Name            *string         `json:"name"`
	Email           *string         `json:"email"`
	Designation     *string         `json:"designation"`
	WeeklyHours     *float64        `json:"weekly_capacity_hours"`
	Skills          *map[string]int `json:"skills"`
	ExperienceYears *float64        `json:"experience_years"`
}

// OffboardPerson records a person's last working day.
type OffboardPerson struct {
	Person         string     `json:"person" validate:"required"`
	LastWorkingDay model.Date `json:"last_working_day"`
}

// DeletePerson hides a person from every view.
type DeletePerson struct {
	Person string `json:"person" validate:"required"`
	Reason string `json:"reason"`
}

// LogTimeOff records an inclusive range of days off.
type LogTimeOff struct {
	Person    string     `json:"person" validate:"required"`
	StartDate model.Date `json:"start_date"`
	EndDate   model.Date `json:"end_date" validate:"gtefield=StartDate"`
	Reason    string     `json:"reason"`
}

// AddProject adds a project. Its id is derived from the name.
type AddProject struct {
	Name             string         `json:"name" validate:"required"`
	Description      string         `json:"description"`
	Status           string         `json:"status"`
	WinProbability   *float64       `json:"win_probability"`
	TotalHoursNeeded *float64       `json:"total_hours_needed"`
	RequiredSkills   map[string]int `json:"required_skills" validate:"dive,gte=0"`
}

// EditProject changes the fields that are set.
type EditProject struct {
	Project          string          `json:"project" validate:"required"`
	Name             *string         `json:"name"`
	Description      *string         `json:"description"`
	Status           *string         `json:"status"`
	WinProbability   *float64        `json:"win_probability"`
	TotalHoursNeeded *float64        `json:"total_hours_needed"`
	RequiredSkills   *map[string]int `json:"required_skills"`
}

// DeleteProject hides a project and stops its allocations from counting.
type DeleteProject struct {
	Project string `json:"project" validate:"required"`
}

// Allocate books a person onto a project. EndDate defaults to StartDate plus
// the configured allocation length.
type Allocate struct {
	Person       string      `json:"person" validate:"required"`
	Project      string      `json:"project" validate:"required"`
	StartDate    model.Date  `json:"start_date"`
	EndDate      *model.Date `json:"end_date"`
	HoursPerWeek float64     `json:"allocated_hours_per_week" validate:"gt=0,lte=168"`
	// Lead marks the person as the project lead.
	Lead bool `json:"is_lead"`
}

// Unallocate withdraws an allocation from WithdrawnOn onwards; by default the
// whole allocation is withdrawn.
type Unallocate struct {
	Allocation  string      `json:"allocation_id" validate:"required"`
	WithdrawnOn *model.Date `json:"withdrawn_on"`
}

// AllocationResult describes a booked allocation.
type AllocationResult struct {
	Allocation model.Allocation
	// MatchesRequirements is false when the person lacks a required skill.
	MatchesRequirements bool
	// OverAllocated lists the weeks in which the person is now over capacity.
	OverAllocated []model.Interval
}

// AddPerson appends PersonAdded.
func (s *Service) AddPerson(ctx context.Context, cmd AddPerson) (model.Person, error) {
	if err := s.check(cmd); err != nil {
		return model.Person{}, err
	}
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = strings.ToLower(strings.TrimSpace(cmd.Email))
	}
	hours := s.defaults.WeeklyHours
	if cmd.WeeklyHours != nil {
		hours = *cmd.WeeklyHours
	}
	if err := checkWeeklyHours("weekly_capacity_hours", hours); err != nil {
		return model.Person{}, err
	}

	_, next, err := s.commit(ctx, "person.add", func(snap *model.Snapshot) (event.Payload, error) {
		if _, ok := snap.Person(id); ok {
			return nil, &ValidationError{
				Field:  "person_id",
				Reason: fmt.Sprintf("%q already exists", id),
				Err:    &model.DuplicateIDError{Kind: model.KindPerson, ID: id},
			}
		}
		p := event.PersonAdded{
			PersonID:            id,
			Name:                strings.TrimSpace(cmd.Name),
			Email:               strings.TrimSpace(cmd.Email),
			ShortCode:           model.ShortCode(cmd.Name, s.defaults.PersonShortCodeLen, snap.TakenShortCodes()),
			Designation:         strings.TrimSpace(cmd.Designation),
			WeeklyCapacityHours: hours,
			Skills:              cmd.Skills,
			ExperienceYears:     cmd.ExperienceYears,
		}
		if cmd.ExperienceYears > 0 {
			today := s.Today()
			p.ExperienceAsOf = &today
		}
		return p, nil
	})
	if err != nil {
		return model.Person{}, err
	}
	return personAfter(next, id), nil
}

// EditPerson appends PersonEdited with only the changed fields.
func (s *Service) EditPerson(ctx context.Context, cmd EditPerson) (model.Person, error) {
	if err := s.check(cmd); err != nil {
		return model.Person{}, err
	}
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		return model.Person{}, invalid("name", "is required")
	}
	if cmd.WeeklyHours != nil {
		if err := checkWeeklyHours("weekly_capacity_hours", *cmd.WeeklyHours); err != nil {
			return model.Person{}, err
		}
	}
	if cmd.ExperienceYears != nil && *cmd.ExperienceYears < 0 {
		return model.Person{}, invalid("experience_years", "must be at least 0")
	}
	if cmd.Skills != nil {
		if err := checkSkills("skills", *cmd.Skills); err != nil {
			return model.Person{}, err
		}
	}

	var id string
	_, next, err := s.commit(ctx, "person.edit", func(snap *model.Snapshot) (event.Payload, error) {
		person, err := resolvePerson(snap, "person", cmd.Person)
		if err != nil {
			return nil, err
		}
		id = person.ID
		p := event.PersonEdited{
			PersonID:            person.ID,
			Name:                trimmed(cmd.Name),
			Email:               trimmed(cmd.Email),
			Designation:         trimmed(cmd.Designation),
			WeeklyCapacityHours: cmd.WeeklyHours,
			Skills:              cmd.Skills,
			ExperienceYears:     cmd.ExperienceYears,
		}
		if cmd.ExperienceYears != nil {
			today := s.Today()
			p.ExperienceAsOf = &today
		}
		if p == (event.PersonEdited{PersonID: person.ID}) {
			return nil, &ValidationError{Reason: "nothing to change", Err: errNothingToChange}
		}
		return p, nil
	})
	if err != nil {
		return model.Person{}, err
	}
	return personAfter(next, id), nil
}

// OffboardPerson appends PersonOffboarded.
func (s *Service) OffboardPerson(ctx context.Context, cmd OffboardPerson) (model.Person, error) {
	if err := s.check(cmd); err != nil {
		return model.Person{}, err
	}
	var id string
	_, next, err := s.commit(ctx, "person.offboard", func(snap *model.Snapshot) (event.Payload, error) {
		person, err := resolvePerson(snap, "person", cmd.Person)
		if err != nil {
			return nil, err
		}
		id = person.ID
		return event.PersonOffboarded{PersonID: person.ID, LastWorkingDay: cmd.LastWorkingDay}, nil
	})
	if err != nil {
		return model.Person{}, err
	}
	return personAfter(next, id), nil
}

// DeletePerson appends PersonDeleted.
func (s *Service) DeletePerson(ctx context.Context, cmd DeletePerson) error {
	if err := s.check(cmd); err != nil {
		return err
	}
	_, _, err := s.commit(ctx, "person.delete", func(snap *model.Snapshot) (event.Payload, error) {
		person, err := resolvePerson(snap, "person", cmd.Person)
		if err != nil {
			return nil, err
		}
		return event.PersonDeleted{PersonID: person.ID, Reason: strings.TrimSpace(cmd.Reason)}, nil
	})
	return err
}

// LogTimeOff appends TimeOffLogged with a fresh id.
func (s *Service) LogTimeOff(ctx context.Context, cmd LogTimeOff) (model.TimeOff, error) {
	if err := s.check(cmd); err != nil {
		return model.TimeOff{}, err
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = DefaultTimeOffReason
	}

	var entry model.TimeOff
	_, _, err := s.commit(ctx, "timeoff.log", func(snap *model.Snapshot) (event.Payload, error) {
		person, err := resolvePerson(snap, "person", cmd.Person)
		if err != nil {
			return nil, err
		}
		taken := make(map[string]bool, len(person.TimeOff))
		for _, t := range person.TimeOff {
			taken[t.ID] = true
		}
		entry = model.TimeOff{
			ID:       s.freshID(taken),
			PersonID: person.ID,
			Start:    cmd.StartDate,
			End:      cmd.EndDate,
			Reason:   reason,
		}
		return event.TimeOffLogged{
			TimeOffID: entry.ID,
			PersonID:  entry.PersonID,
			StartDate: entry.Start,
			EndDate:   entry.End,
			Reason:    entry.Reason,
		}, nil
	})
	if err != nil {
		return model.TimeOff{}, err
	}
	return entry, nil
}

// AddProject appends ProjectAdded with a slug id and a generated short code.
func (s *Service) AddProject(ctx context.Context, cmd AddProject) (model.Project, error) {
	if err := s.check(cmd); err != nil {
		return model.Project{}, err
	}
	status := model.ProjectProposed
	if strings.TrimSpace(cmd.Status) != "" {
		parsed, err := model.ParseProjectStatus(cmd.Status)
		if err != nil {
			return model.Project{}, &ValidationError{Field: "status", Reason: err.Error(), Err: err}
		}
		status = parsed
	}
	probability := DefaultProposedProbability
	if status != model.ProjectProposed {
		probability = 1
	}
	if cmd.WinProbability != nil {
		probability = *cmd.WinProbability
	}
	if err := checkProbability(probability); err != nil {
		return model.Project{}, err
	}
	if err := checkTotalHours(cmd.TotalHoursNeeded); err != nil {
		return model.Project{}, err
	}

	var id string
	_, next, err := s.commit(ctx, "project.add", func(snap *model.Snapshot) (event.Payload, error) {
		id = model.ProjectID(cmd.Name, snap.TakenProjectIDs())
		return event.ProjectAdded{
			ProjectID:        id,
			Name:             strings.TrimSpace(cmd.Name),
			ShortCode:        strings.ToUpper(model.ShortCode(cmd.Name, s.defaults.ProjectShortCodeLen, snap.TakenProjectShortCodes())),
			Description:      strings.TrimSpace(cmd.Description),
			Status:           status,
			WinProbability:   probability,
			TotalHoursNeeded: cmd.TotalHoursNeeded,
			RequiredSkills:   cmd.RequiredSkills,
		}, nil
	})
	if err != nil {
		return model.Project{}, err
	}
	return projectAfter(next, id), nil
}

// EditProject appends ProjectEdited with only the changed fields.
func (s *Service) EditProject(ctx context.Context, cmd EditProject) (model.Project, error) {
	if err := s.check(cmd); err != nil {
		return model.Project{}, err
	}
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		return model.Project{}, invalid("name", "is required")
	}
	var status *model.ProjectStatus
	if cmd.Status != nil {
		parsed, err := model.ParseProjectStatus(*cmd.Status)
		if err != nil {
			return model.Project{}, &ValidationError{Field: "status", Reason: err.Error(), Err: err}
		}
		status = &parsed
	}
	if cmd.WinProbability != nil {
		if err := checkProbability(*cmd.WinProbability); err != nil {
			return model.Project{}, err
		}
	}
	if err := checkTotalHours(cmd.TotalHoursNeeded); err != nil {
		return model.Project{}, err
	}
	if cmd.RequiredSkills != nil {
		if err := checkSkills("required_skills", *cmd.RequiredSkills); err != nil {
			return model.Project{}, err
		}
	}

	var id string
	_, next, err := s.commit(ctx, "project.edit", func(snap *model.Snapshot) (event.Payload, error) {
		project, err := resolveProject(snap, "project", cmd.Project)
		if err != nil {
			return nil, err
		}
		id = project.ID
		p := event.ProjectEdited{
			ProjectID:        project.ID,
			Name:             trimmed(cmd.Name),
			Description:      trimmed(cmd.Description),
			Status:           status,
			WinProbability:   cmd.WinProbability,
			TotalHoursNeeded: cmd.TotalHoursNeeded,
			RequiredSkills:   cmd.RequiredSkills,
		}
		if p == (event.ProjectEdited{ProjectID: project.ID}) {
			return nil, &ValidationError{Reason: "nothing to change", Err: errNothingToChange}
		}
		return p, nil
	})
	if err != nil {
		return model.Project{}, err
	}
	return projectAfter(next, id), nil
}

// DeleteProject appends ProjectDeleted.
func (s *Service) DeleteProject(ctx context.Context, cmd DeleteProject) error {
	if err := s.check(cmd); err != nil {
		return err
	}
	_, _, err := s.commit(ctx, "project.delete", func(snap *model.Snapshot) (event.Payload, error) {
		project, err := resolveProject(snap, "project", cmd.Project)
		if err != nil {
			return nil, err
		}
		return event.ProjectDeleted{ProjectID: project.ID}, nil
	})
	return err
}

// Allocate appends Allocated. Over-capacity and missing skills are reported in
// the result, never rejected.
func (s *Service) Allocate(ctx context.Context, cmd Allocate) (AllocationResult, error) {
	if err := s.check(cmd); err != nil {
		return AllocationResult{}, err
	}
	end := cmd.StartDate.AddDays(s.defaults.AllocationDays)
	if cmd.EndDate != nil {
		end = *cmd.EndDate
	}
	if end < cmd.StartDate {
		return AllocationResult{}, invalid("end_date", "must not be before start_date")
	}

	var result AllocationResult
	_, next, err := s.commit(ctx, "allocation.add", func(snap *model.Snapshot) (event.Payload, error) {
		person, err := resolvePerson(snap, "person", cmd.Person)
		if err != nil {
			return nil, err
		}
		project, err := resolveProject(snap, "project", cmd.Project)
		if err != nil {
			return nil, err
		}
		if !person.AvailableOn(cmd.StartDate) {
			return nil, invalid("start_date", fmt.Sprintf("is after %s's last working day %s", person.Name, person.LastWorkingDay))
		}
		if !project.Contributes() {
			return nil, invalid("project", fmt.Sprintf("%s is %s", project.Name, project.Status))
		}

		taken := make(map[string]bool, len(snap.Allocations))
		for id := range snap.Allocations {
			taken[id] = true
		}
		result.MatchesRequirements = project.MatchesRequirements(person)
		result.Allocation = model.Allocation{
			ID:           s.freshID(taken),
			PersonID:     person.ID,
			ProjectID:    project.ID,
			Start:        cmd.StartDate,
			End:          end,
			HoursPerWeek: cmd.HoursPerWeek,
			Lead:         cmd.Lead,
		}
		return event.Allocated{
			AllocationID: result.Allocation.ID,
			PersonID:     person.ID,
			ProjectID:    project.ID,
			StartDate:    cmd.StartDate,
			EndDate:      end,
			HoursPerWeek: cmd.HoursPerWeek,
			Lead:         cmd.Lead,
		}, nil
	})
	if err != nil {
		return AllocationResult{}, err
	}
	if next != nil {
		result.Allocation = next.Allocations[result.Allocation.ID]
		result.OverAllocated = s.overAllocatedWeeks(next, result.Allocation)
	}
	return result, nil
}

// Unallocate appends Unallocated.
func (s *Service) Unallocate(ctx context.Context, cmd Unallocate) (model.Allocation, error) {
	if err := s.check(cmd); err != nil {
		return model.Allocation{}, err
	}
	id := strings.TrimSpace(cmd.Allocation)
	_, next, err := s.commit(ctx, "allocation.remove", func(snap *model.Snapshot) (event.Payload, error) {
		a, ok := snap.Allocation(id)
		if !ok {
			return nil, &ValidationError{
				Field:  "allocation_id",
				Reason: fmt.Sprintf("no allocation %q", id),
				Err:    &model.UnknownEntityError{Kind: model.KindAllocation, ID: id},
			}
		}
		on := a.Start
		if cmd.WithdrawnOn != nil {
			on = *cmd.WithdrawnOn
		}
		if a.WithdrawnOn != nil && *a.WithdrawnOn <= on {
			return nil, invalid("withdrawn_on", fmt.Sprintf("allocation already withdrawn on %s", a.WithdrawnOn))
		}
		return event.Unallocated{AllocationID: id, WithdrawnOn: on}, nil
	})
	if err != nil {
		return model.Allocation{}, err
	}
	if next == nil {
		return model.Allocation{}, nil
	}
	return next.Allocations[id], nil
}

// overAllocatedWeeks checks the weeks an allocation spans, up to a horizon.
func (s *Service) overAllocatedWeeks(snap *model.Snapshot, a model.Allocation) []model.Interval {
	var out []model.Interval
	start := a.Start.StartOfWeek()
	for i := 0; i < overAllocationHorizon; i++ {
		week := model.Interval{From: start.AddDays(7 * i), To: start.AddDays(7*i + 6)}
		if week.From > a.End {
			break
		}
		res, err := s.calc.Capacity(snap, a.PersonID, week)
		if err != nil || res.Departed {
			break
		}
		if res.OverAllocated {
			out = append(out, week)
		}
	}
	return out
}

func (s *Service) freshID(taken map[string]bool) string {
	for {
		if id := s.newID(); !taken[id] {
			return id
		}
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func personAfter(next *model.Snapshot, id string) model.Person {
	if next == nil {
		return model.Person{}
	}
	return next.People[id]
}

func projectAfter(next *model.Snapshot, id string) model.Project {
	if next == nil {
		return model.Project{}
	}
	return next.Projects[id]
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func checkWeeklyHours(field string, hours float64) error {
	if hours < 0 || hours > 168 {
		return invalid(field, "must be between 0 and 168")
	}
	return nil
}

func checkProbability(p float64) error {
	if p < 0 || p > 1 {
		return invalid("win_probability", "must be between 0 and 1")
	}
	return nil
}

func checkTotalHours(h *float64) error {
	if h != nil && *h < 0 {
		return invalid("total_hours_needed", "must be at least 0")
	}
	return nil
}

func checkSkills(field string, skills map[string]int) error {
	for name, level := range skills {
		if strings.TrimSpace(name) == "" {
			return invalid(field, "skill names must not be empty")
		}
		if level < 0 {
			return invalid(field, fmt.Sprintf("level for %s must be at least 0", name))
		}
	}
	return nil
}
