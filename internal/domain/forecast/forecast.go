// Package forecast builds utilization reports from a snapshot: person or
// project rows by day, week or month buckets, filtered and weighted by the
// confirmation state of the work.
package forecast

import (
	"slices"

	"github.com/samber/lo"

	"github.com/okian/rostr/internal/domain/availability"
	"github.com/okian/rostr/internal/domain/model"
)

// DefaultUtilizationTarget is the percentage at which a person counts as healthily utilized.
const DefaultUtilizationTarget = 75

// Settings carries the report preferences resolved at startup.
type Settings struct {
	// UtilizationTarget is the lower bound of the healthy band, in percent.
	UtilizationTarget float64
	// Order is the row order used when the caller does not name entities.
	Order model.Order
}

// DefaultSettings returns insertion order and a 75% target.
func DefaultSettings() Settings {
	return Settings{UtilizationTarget: DefaultUtilizationTarget, Order: model.OrderInsertion}
}

// Engine builds reports. It holds no snapshot: every call receives one.
type Engine struct {
	calc     *availability.Calculator
	settings Settings
}

// NewEngine creates a report engine on top of an availability calculator.
func NewEngine(calc *availability.Calculator, settings Settings) *Engine {
	if calc == nil {
		calc = availability.NewCalculator()
	}
	if settings.UtilizationTarget <= 0 {
		settings.UtilizationTarget = DefaultUtilizationTarget
	}
	return &Engine{calc: calc, settings: settings}
}

// Settings returns the engine's settings.
func (e *Engine) Settings() Settings { return e.settings }

// Current reports each person over the Monday to Sunday week containing asOf.
func (e *Engine) Current(s *model.Snapshot, asOf model.Date, view View) (Matrix, error) {
	start := asOf.StartOfWeek()
	buckets := []Bucket{{
		Interval: model.Interval{From: start, To: start.AddDays(6)},
		Label:    "Wk " + start.Format("Jan 02"),
	}}
	return e.BuildMatrix(s, People, buckets, view)
}

// Forecast reports people over whole months, starting with the month after asOf.
func (e *Engine) Forecast(s *model.Snapshot, asOf model.Date, months int, view View) (Matrix, error) {
	buckets, err := Buckets(asOf.AddMonths(1), Month, months)
	if err != nil {
		return Matrix{}, err
	}
	return e.BuildMatrix(s, People, buckets, view)
}

// Timeline reports people or projects over periods buckets starting at start.
func (e *Engine) Timeline(s *model.Snapshot, subject Subject, start model.Date, g Granularity, periods int, view View) (Matrix, error) {
	buckets, err := Buckets(start, g, periods)
	if err != nil {
		return Matrix{}, err
	}
	return e.BuildMatrix(s, subject, buckets, view)
}

// Band classifies a utilization percentage.
type Band string

const (
	BandOver    Band = "over"
	BandHealthy Band = "healthy"
	BandUnder   Band = "under"
)

// Band returns over above 100%, healthy at or above the target, under otherwise.
func (e *Engine) Band(percent float64) Band {
	switch {
	case percent > 100:
		return BandOver
	case percent >= e.settings.UtilizationTarget:
		return BandHealthy
	default:
		return BandUnder
	}
}

// TimeOffEntry is one logged absence.
type TimeOffEntry struct {
	PersonID    string
	Name        string
	ShortCode   string
	TimeOff     model.TimeOff
	WorkingDays int
}

// TimeOffReport lists time-off entries of live people, in row order and then
// chronologically. When window is non-nil only entries overlapping it are kept.
func (e *Engine) TimeOffReport(s *model.Snapshot, window *model.Interval) []TimeOffEntry {
	var out []TimeOffEntry
	for _, p := range s.LivePeople(e.settings.Order) {
		entries := slices.SortedStableFunc(slices.Values(p.TimeOff), func(a, b model.TimeOff) int {
			return int(a.Start - b.Start)
		})
		for _, t := range entries {
			if window != nil && !t.Interval().Overlaps(*window) {
				continue
			}
			out = append(out, TimeOffEntry{
				PersonID:    p.ID,
				Name:        p.Name,
				ShortCode:   p.ShortCode,
				TimeOff:     t,
				WorkingDays: e.calc.Convention().WorkingDaysIn(t.Interval()),
			})
		}
	}
	return out
}

// SkillHolder is a person holding a skill.
type SkillHolder struct {
	PersonID  string
	Name      string
	Level     int
	FreeHours float64
}

// SkillGap is the coverage of one skill.
type SkillGap struct {
	Skill string
	// RequiredLevel is the highest minimum level any open project asks for.
	RequiredLevel int
	// Projects lists the Active or Proposed projects requiring the skill.
	Projects []string
	// AvailableLevel is the highest level held by a live person.
	AvailableLevel int
	Holders        []SkillHolder
	// Covering counts holders at or above RequiredLevel with free hours left
	// in the week of the report date.
	Covering  int
	FreeHours float64
	Gap       bool
}

// SkillGap aggregates required skills of Active and Proposed projects against
// the people holding them. Without skills, every required skill is reported,
// sorted by name.
func (e *Engine) SkillGap(s *model.Snapshot, asOf model.Date, skills ...string) ([]SkillGap, error) {
	open := lo.Filter(s.LiveProjects(model.OrderInsertion), func(p model.Project, _ int) bool {
		return p.Status == model.ProjectActive || p.Status == model.ProjectProposed
	})
	if len(skills) == 0 {
		skills = lo.Uniq(lo.FlatMap(open, func(p model.Project, _ int) []string {
			return p.RequiredSkills.Names()
		}))
		slices.Sort(skills)
	}

	week := model.Interval{From: asOf.StartOfWeek(), To: asOf.StartOfWeek().AddDays(6)}
	people := s.LivePeople(e.settings.Order)
	free := make(map[string]float64, len(people))
	for _, p := range people {
		res, err := e.calc.Capacity(s, p.ID, week)
		if err != nil {
			return nil, err
		}
		free[p.ID] = round(res.FreeHours, 2)
	}

	out := make([]SkillGap, 0, len(skills))
	for _, skill := range skills {
		gap := SkillGap{Skill: skill}
		for _, p := range open {
			if level, ok := p.RequiredSkills.Level(skill); ok {
				gap.RequiredLevel = max(gap.RequiredLevel, level)
				gap.Projects = append(gap.Projects, p.ID)
			}
		}
		for _, p := range people {
			level, ok := p.Skills.Level(skill)
			if !ok {
				continue
			}
			gap.AvailableLevel = max(gap.AvailableLevel, level)
			gap.Holders = append(gap.Holders, SkillHolder{PersonID: p.ID, Name: p.Name, Level: level, FreeHours: free[p.ID]})
			if level >= gap.RequiredLevel && free[p.ID] > 0 {
				gap.Covering++
				gap.FreeHours += free[p.ID]
			}
		}
		gap.FreeHours = round(gap.FreeHours, 2)
		gap.Gap = gap.Covering == 0
		out = append(out, gap)
	}
	return out, nil
}
