package service

import (
	"context"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/okian/rostr/internal/domain/availability"
	"github.com/okian/rostr/internal/domain/forecast"
	"github.com/okian/rostr/internal/domain/model"
	"github.com/okian/rostr/pkg/metrics"
)

// CurrentQuery selects the week containing AsOf (today when nil).
type CurrentQuery struct {
	AsOf *model.Date `json:"as_of"`
	View string      `json:"view"`
}

// ForecastQuery selects Months whole months after AsOf.
type ForecastQuery struct {
	AsOf   *model.Date `json:"as_of"`
	Months int         `json:"months" validate:"gte=0,lte=36"`
	View   string      `json:"view"`
}

// TimelineQuery selects Periods buckets of Granularity starting at Start.
type TimelineQuery struct {
	Subject     forecast.Subject `json:"subject" validate:"omitempty,oneof=people projects"`
	Start       *model.Date      `json:"start"`
	Granularity string           `json:"interval"`
	Periods     int              `json:"periods" validate:"gt=0,lte=366"`
	View        string           `json:"view"`
	// IDs restricts and orders the rows; ids or short codes.
	IDs []string `json:"ids"`
}

// PeopleFilter narrows ListPeople. Empty fields match everyone.
type PeopleFilter struct {
	Skill  string
	Search string
}

// ProjectFilter narrows ListProjects. Empty fields match everything.
type ProjectFilter struct {
	Skill  string
	Search string
}

// Candidate is a person considered for a project.
type Candidate struct {
	Person              model.Person
	MatchesRequirements bool
	ExperienceYears     float64
}

// Current reports utilization for the week containing the as-of date.
func (s *Service) Current(ctx context.Context, q CurrentQuery) (forecast.Matrix, error) {
	if err := s.check(q); err != nil {
		return forecast.Matrix{}, err
	}
	view, err := viewOf(q.View)
	if err != nil {
		return forecast.Matrix{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return forecast.Matrix{}, err
	}
	m, err := s.engine.Current(snap, s.asOf(q.AsOf), view)
	return s.matrixDone("current", m, err)
}

// Forecast reports utilization by month for the months after the as-of date.
func (s *Service) Forecast(ctx context.Context, q ForecastQuery) (forecast.Matrix, error) {
	if err := s.check(q); err != nil {
		return forecast.Matrix{}, err
	}
	months := q.Months
	if months == 0 {
		months = s.defaults.ForecastMonths
	}
	view, err := viewOf(q.View)
	if err != nil {
		return forecast.Matrix{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return forecast.Matrix{}, err
	}
	m, err := s.engine.Forecast(snap, s.asOf(q.AsOf), months, view)
	return s.matrixDone("forecast", m, err)
}

// Timeline reports people or projects over consecutive buckets.
func (s *Service) Timeline(ctx context.Context, q TimelineQuery) (forecast.Matrix, error) {
	if err := s.check(q); err != nil {
		return forecast.Matrix{}, err
	}
	g, err := forecast.ParseGranularity(q.Granularity)
	if err != nil {
		return forecast.Matrix{}, &ValidationError{Field: "interval", Reason: err.Error(), Err: err}
	}
	view, err := viewOf(q.View)
	if err != nil {
		return forecast.Matrix{}, err
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return forecast.Matrix{}, err
	}

	ids := make([]string, 0, len(q.IDs))
	for _, ref := range q.IDs {
		if q.Subject == forecast.Projects {
			p, err := resolveProject(snap, "ids", ref)
			if err != nil {
				return forecast.Matrix{}, err
			}
			ids = append(ids, p.ID)
			continue
		}
		p, err := resolvePerson(snap, "ids", ref)
		if err != nil {
			return forecast.Matrix{}, err
		}
		ids = append(ids, p.ID)
	}

	buckets, err := forecast.Buckets(s.asOf(q.Start), g, q.Periods)
	if err != nil {
		return forecast.Matrix{}, err
	}
	subject := q.Subject
	if subject == "" {
		subject = forecast.People
	}
	m, err := s.engine.BuildMatrix(snap, subject, buckets, view, ids...)
	return s.matrixDone("timeline", m, err)
}

// TimeOffReport lists time-off per person, optionally limited to a window.
func (s *Service) TimeOffReport(ctx context.Context, window *model.Interval) ([]forecast.TimeOffEntry, error) {
	if window != nil && window.Empty() {
		return nil, invalid("window", "end must not be before start")
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordReport("timeoff")
	return s.engine.TimeOffReport(snap, window), nil
}

// SkillGap compares required skills with the people free to cover them.
func (s *Service) SkillGap(ctx context.Context, asOf *model.Date, skills ...string) ([]forecast.SkillGap, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	gaps, err := s.engine.SkillGap(snap, s.asOf(asOf), skills...)
	if err != nil {
		return nil, err
	}
	metrics.RecordReport("skills")
	return gaps, nil
}

// Capacity breaks down one person's hours over an interval.
func (s *Service) Capacity(ctx context.Context, person string, iv model.Interval) (availability.Result, error) {
	if iv.Empty() {
		return availability.Result{}, invalid("interval", "end must not be before start")
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return availability.Result{}, err
	}
	p, err := resolvePerson(snap, "person", person)
	if err != nil {
		return availability.Result{}, err
	}
	metrics.RecordReport("capacity")
	return s.calc.Capacity(snap, p.ID, iv)
}

// ListPeople returns live people in the configured order.
func (s *Service) ListPeople(ctx context.Context, f PeopleFilter) ([]model.Person, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	skill := strings.ToLower(strings.TrimSpace(f.Skill))
	search := strings.ToLower(strings.TrimSpace(f.Search))
	return lo.Filter(snap.LivePeople(s.settings.Order), func(p model.Person, _ int) bool {
		if skill != "" {
			if _, ok := p.Skills.Level(skill); !ok {
				return false
			}
		}
		if search == "" {
			return true
		}
		fields := append([]string{p.ID, p.Name, p.Email, p.ShortCode, p.Designation}, p.Skills.Names()...)
		return lo.SomeBy(fields, func(v string) bool {
			return strings.Contains(strings.ToLower(v), search)
		})
	}), nil
}

// ListProjects returns live projects in the configured order.
func (s *Service) ListProjects(ctx context.Context, f ProjectFilter) ([]model.Project, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	skill := strings.ToLower(strings.TrimSpace(f.Skill))
	search := strings.ToLower(strings.TrimSpace(f.Search))
	return lo.Filter(snap.LiveProjects(s.settings.Order), func(p model.Project, _ int) bool {
		if skill != "" {
			if _, ok := p.RequiredSkills.Level(skill); !ok {
				return false
			}
		}
		if search == "" {
			return true
		}
		return lo.SomeBy([]string{p.ID, p.Name, p.ShortCode, p.Description}, func(v string) bool {
			return strings.Contains(strings.ToLower(v), search)
		})
	}), nil
}

// TeamMember is a live person booked on a project.
type TeamMember struct {
	Person model.Person
	Lead   bool
}

// Teams returns the people booked on each live project, keyed by project id.
// Fully withdrawn bookings are ignored. A person booked more than once is
// listed once, as lead when any booking says so.
func (s *Service) Teams(ctx context.Context) (map[string][]TeamMember, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string][]TeamMember{}
	for _, project := range snap.LiveProjects(model.OrderInsertion) {
		var team []TeamMember
		for _, a := range snap.AllocationsOn(project.ID) {
			person, ok := snap.Person(a.PersonID)
			if !ok || a.Effective().Empty() {
				continue
			}
			if i := slices.IndexFunc(team, func(m TeamMember) bool { return m.Person.ID == person.ID }); i >= 0 {
				team[i].Lead = team[i].Lead || a.Lead
				continue
			}
			team = append(team, TeamMember{Person: person, Lead: a.Lead})
		}
		slices.SortFunc(team, func(x, y TeamMember) int {
			return strings.Compare(x.Person.ShortCode, y.Person.ShortCode)
		})
		if len(team) > 0 {
			out[project.ID] = team
		}
	}
	return out, nil
}

// ListAllocations returns the allocations of live people on live projects.
// Withdrawn allocations are included only when withdrawn is true.
func (s *Service) ListAllocations(ctx context.Context, withdrawn bool) ([]model.Allocation, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Allocation, 0, len(snap.AllocationOrder))
	for _, id := range snap.AllocationOrder {
		a, ok := snap.Allocation(id)
		if !ok {
			continue
		}
		if _, ok := snap.Person(a.PersonID); !ok {
			continue
		}
		if _, ok := snap.Project(a.ProjectID); !ok {
			continue
		}
		if a.Effective().Empty() && !withdrawn {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Candidates lists active people for a project, matching ones first, then by
// experience.
func (s *Service) Candidates(ctx context.Context, project string) ([]Candidate, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	p, err := resolveProject(snap, "project", project)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	out := make([]Candidate, 0, len(snap.People))
	for _, person := range snap.LivePeople(s.settings.Order) {
		if !person.AvailableOn(today) {
			continue
		}
		out = append(out, Candidate{
			Person:              person,
			MatchesRequirements: p.MatchesRequirements(person),
			ExperienceYears:     person.ExperienceOn(today),
		})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.MatchesRequirements != b.MatchesRequirements:
			if a.MatchesRequirements {
				return -1
			}
			return 1
		case a.ExperienceYears > b.ExperienceYears:
			return -1
		case a.ExperienceYears < b.ExperienceYears:
			return 1
		}
		return 0
	})
	metrics.RecordReport("candidates")
	return out, nil
}

// viewOf maps an already validated view name; empty means All.
// viewOf parses a view name in any case. Empty selects All.
func viewOf(name string) (forecast.View, error) {
	if strings.TrimSpace(name) == "" {
		return forecast.All, nil
	}
	v, err := forecast.ParseView(name)
	if err != nil {
		return "", &ValidationError{Field: "view", Reason: err.Error(), Err: err}
	}
	return v, nil
}

func (s *Service) asOf(d *model.Date) model.Date {
	if d != nil {
		return *d
	}
	return s.Today()
}

func (s *Service) matrixDone(kind string, m forecast.Matrix, err error) (forecast.Matrix, error) {
	if err != nil {
		return forecast.Matrix{}, err
	}
	metrics.RecordReport(kind)
	metrics.RecordOverAllocatedCells(m.OverAllocatedCells())
	return m, nil
}
