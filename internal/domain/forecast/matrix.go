package forecast

import (
	"cmp"
	"errors"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/okian/rostr/internal/domain/model"
)

const overEpsilon = 1e-9

// Subject selects what a matrix row represents.
type Subject string

const (
	People   Subject = "people"
	Projects Subject = "projects"
)

// Reason explains a cell without a utilization figure.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonLeft          Reason = "left"
	ReasonTimeOff       Reason = "time-off"
	ReasonNoWorkingDays Reason = "no-working-days"
	ReasonNoCapacity    Reason = "no-capacity"
	ReasonUnstaffed     Reason = "unstaffed"
)

// Cell is one entity in one bucket.
type Cell struct {
	Bucket         Bucket
	EffectiveHours float64
	CapacityHours  float64
	TimeOffHours   float64
	FreeHours      float64
	// Percent is EffectiveHours/CapacityHours*100, rounded to one decimal.
	// It is only meaningful when Applicable.
	Percent       float64
	Applicable    bool
	Reason        Reason
	OverAllocated bool
	// Breakdown splits EffectiveHours by project id (person rows) or by
	// person id (project rows).
	Breakdown map[string]float64
}

// Utilization returns the percentage and whether the cell has one.
func (c Cell) Utilization() (float64, bool) {
	return c.Percent, c.Applicable
}

// Row is one entity across all buckets.
type Row struct {
	ID        string
	Name      string
	ShortCode string
	// WeeklyHours is the person's weekly capacity; zero for project rows.
	WeeklyHours float64
	// Lead is the short code (or id) of the project lead; empty for person rows.
	Lead  string
	Cells []Cell
}

// Matrix is a utilization table of entities by buckets.
type Matrix struct {
	Subject Subject
	View    View
	Buckets []Bucket
	Rows    []Row
}

// OverAllocatedCells counts cells flagged as over-allocated.
func (m Matrix) OverAllocatedCells() int {
	return lo.SumBy(m.Rows, func(r Row) int {
		return lo.CountBy(r.Cells, func(c Cell) bool { return c.OverAllocated })
	})
}

// BuildMatrix computes utilization for every requested entity and bucket.
// Without ids, all live entities of the subject are listed in the engine's
// configured order; with ids, rows follow the given order exactly.
func (e *Engine) BuildMatrix(s *model.Snapshot, subject Subject, buckets []Bucket, view View, ids ...string) (Matrix, error) {
	if _, err := ParseView(string(view)); err != nil {
		return Matrix{}, err
	}
	if err := CheckBuckets(buckets); err != nil {
		return Matrix{}, err
	}

	m := Matrix{Subject: subject, View: view, Buckets: buckets}
	switch subject {
	case Projects:
		projects, err := e.projects(s, ids)
		if err != nil {
			return Matrix{}, err
		}
		for _, p := range projects {
			row, err := e.projectRow(s, p, buckets, view)
			if err != nil {
				return Matrix{}, err
			}
			m.Rows = append(m.Rows, row)
		}
	default:
		m.Subject = People
		people, err := e.people(s, ids)
		if err != nil {
			return Matrix{}, err
		}
		for _, p := range people {
			row, err := e.personRow(s, p, buckets, view)
			if err != nil {
				return Matrix{}, err
			}
			m.Rows = append(m.Rows, row)
		}
	}
	return m, nil
}

func (e *Engine) people(s *model.Snapshot, ids []string) ([]model.Person, error) {
	if len(ids) == 0 {
		return s.LivePeople(e.settings.Order), nil
	}
	out := make([]model.Person, 0, len(ids))
	for _, id := range ids {
		p, ok := s.Person(id)
		if !ok {
			return nil, &model.UnknownEntityError{Kind: model.KindPerson, ID: id}
		}
		out = append(out, p)
	}
	return out, nil
}

func (e *Engine) projects(s *model.Snapshot, ids []string) ([]model.Project, error) {
	if len(ids) == 0 {
		return s.LiveProjects(e.settings.Order), nil
	}
	out := make([]model.Project, 0, len(ids))
	for _, id := range ids {
		p, ok := s.Project(id)
		if !ok {
			return nil, &model.UnknownEntityError{Kind: model.KindProject, ID: id}
		}
		out = append(out, p)
	}
	return out, nil
}

func (e *Engine) personRow(s *model.Snapshot, p model.Person, buckets []Bucket, view View) (Row, error) {
	row := Row{ID: p.ID, Name: p.Name, ShortCode: p.ShortCode, WeeklyHours: p.WeeklyCapacityHours}
	for _, b := range buckets {
		res, err := e.calc.Capacity(s, p.ID, b.Interval)
		if err != nil {
			return Row{}, err
		}
		cell := Cell{
			Bucket:        b,
			CapacityHours: res.CapacityHours,
			TimeOffHours:  res.TimeOffHours,
			Breakdown:     map[string]float64{},
		}
		for projectID, hours := range res.ByProject {
			project, _ := s.Project(projectID)
			if w := view.Weight(project); w > 0 {
				cell.Breakdown[projectID] = hours * w
				cell.EffectiveHours += hours * w
			}
		}
		switch {
		case res.Departed:
			cell.Reason = ReasonLeft
		case p.WeeklyCapacityHours <= 0:
			cell.Reason = ReasonNoCapacity
		case res.CapacityHours <= 0 && res.GrossHours > 0:
			cell.Reason = ReasonTimeOff
		case res.CapacityHours <= 0:
			cell.Reason = ReasonNoWorkingDays
		}
		row.Cells = append(row.Cells, finish(cell))
	}
	return row, nil
}

// projectRow measures a project against the capacity of the people staffed
// on it in each bucket.
func (e *Engine) projectRow(s *model.Snapshot, p model.Project, buckets []Bucket, view View) (Row, error) {
	row := Row{ID: p.ID, Name: p.Name, ShortCode: p.ShortCode, Lead: lead(s, p.ID)}
	staff := lo.Uniq(lo.Map(s.AllocationsOn(p.ID), func(a model.Allocation, _ int) string {
		return a.PersonID
	}))
	weight := view.Weight(p)

	for _, b := range buckets {
		cell := Cell{Bucket: b, Breakdown: map[string]float64{}, Reason: ReasonUnstaffed}
		for _, personID := range staff {
			res, err := e.calc.Capacity(s, personID, b.Interval)
			if errors.Is(err, model.ErrUnknownEntity) {
				continue
			}
			if err != nil {
				return Row{}, err
			}
			hours, ok := res.ByProject[p.ID]
			if !ok || hours == 0 {
				continue
			}
			cell.Reason = ReasonNone
			cell.CapacityHours += res.CapacityHours
			cell.TimeOffHours += res.TimeOffHours
			if weight > 0 {
				cell.Breakdown[personID] = hours * weight
				cell.EffectiveHours += hours * weight
			}
		}
		if cell.Reason == ReasonNone && cell.CapacityHours <= 0 {
			cell.Reason = ReasonTimeOff
		}
		row.Cells = append(row.Cells, finish(cell))
	}
	return row, nil
}

// lead returns the first live person booked as lead on a project.
func lead(s *model.Snapshot, projectID string) string {
	for _, a := range s.AllocationsOn(projectID) {
		if !a.Lead || a.Effective().Empty() {
			continue
		}
		if person, ok := s.Person(a.PersonID); ok {
			return cmp.Or(person.ShortCode, person.ID)
		}
	}
	return ""
}

// finish derives the percentage, free hours and flags from the hour totals.
func finish(c Cell) Cell {
	c.OverAllocated = c.EffectiveHours > c.CapacityHours+overEpsilon
	c.FreeHours = round(max(c.CapacityHours-c.EffectiveHours, 0), 2)
	c.Applicable = c.CapacityHours > 0 && c.Reason == ReasonNone
	if c.Applicable {
		c.Percent = round(c.EffectiveHours/c.CapacityHours*100, 1)
	}
	c.EffectiveHours = round(c.EffectiveHours, 2)
	c.CapacityHours = round(c.CapacityHours, 2)
	c.TimeOffHours = round(c.TimeOffHours, 2)
	for k, v := range c.Breakdown {
		c.Breakdown[k] = round(v, 2)
	}
	return c
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
