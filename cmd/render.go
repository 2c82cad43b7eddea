package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	service "github.com/okian/rostr/internal/app"
	"github.com/okian/rostr/internal/domain/availability"
	"github.com/okian/rostr/internal/domain/forecast"
	"github.com/okian/rostr/internal/domain/model"
)

func (c *cli) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(c.out)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func (c *cli) date(d model.Date) string { return d.Format(c.cfg.DateFormat) }

func (c *cli) warn(s string) string { return color.Yellow.Sprint(s) }

// paint colours a utilization figure by its band.
func (c *cli) paint(percent float64, text string) string {
	switch c.svc.Engine().Band(percent) {
	case forecast.BandOver:
		return color.Red.Sprint(text)
	case forecast.BandHealthy:
		return color.Green.Sprint(text)
	default:
		return color.Yellow.Sprint(text)
	}
}

// hoursText prints hours to at most two decimals, without trailing zeros.
func hoursText(h float64) string { return decimal.NewFromFloat(h).Round(2).String() }

func percentText(p float64) string { return strconv.FormatFloat(p, 'f', 1, 64) + "%" }

// layout selects the extra detail a report shows next to each figure.
type layout int

const (
	layoutForecast layout = iota
	// layoutCurrent adds each person's project breakdown.
	layoutCurrent
	// layoutTimeline adds free hours and a PTO marker.
	layoutTimeline
)

func (c *cli) cellText(cell forecast.Cell, subject forecast.Subject, l layout) string {
	if !cell.Applicable {
		if cell.Reason == forecast.ReasonNone {
			return "-"
		}
		return string(cell.Reason)
	}
	text := percentText(cell.Percent)
	if cell.OverAllocated {
		text += "!"
	}
	text = c.paint(cell.Percent, text)
	if l != layoutTimeline {
		return text
	}
	if subject == forecast.People && cell.FreeHours > 0 {
		text += " (" + hoursText(cell.FreeHours) + "h free)"
	}
	if cell.TimeOffHours > 0 {
		text += ", " + color.Cyan.Sprint("PTO")
	}
	return text
}

// breakdownText lists hours by project, largest first, or "Bench".
func breakdownText(cell forecast.Cell) string {
	if len(cell.Breakdown) == 0 {
		return color.Magenta.Sprint("Bench")
	}
	ids := slices.SortedFunc(maps.Keys(cell.Breakdown), func(a, b string) int {
		if d := cmp.Compare(cell.Breakdown[b], cell.Breakdown[a]); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (%sh)", id, hoursText(cell.Breakdown[id])))
	}
	return strings.Join(parts, ", ")
}

func (c *cli) renderMatrix(m forecast.Matrix, l layout) {
	if len(m.Rows) == 0 {
		fmt.Fprintf(c.out, "no %s to report\n", m.Subject)
		return
	}
	header := []string{"Code", "Name"}
	switch m.Subject {
	case forecast.People:
		header = append(header, "h/week")
	case forecast.Projects:
		header = append(header, "Lead")
	}
	for _, b := range m.Buckets {
		header = append(header, b.Label)
	}
	breakdown := l == layoutCurrent && m.Subject == forecast.People && len(m.Buckets) == 1
	if breakdown {
		header = append(header, "Projects")
	}
	t := c.table(header...)
	for _, row := range m.Rows {
		line := []string{row.ShortCode, row.Name}
		switch m.Subject {
		case forecast.People:
			line = append(line, hoursText(row.WeeklyHours))
		case forecast.Projects:
			line = append(line, cmp.Or(row.Lead, "N/A"))
		}
		for _, cell := range row.Cells {
			line = append(line, c.cellText(cell, m.Subject, l))
		}
		if breakdown {
			line = append(line, breakdownText(row.Cells[0]))
		}
		t.Append(line)
	}
	t.Render()
	if cells := m.OverAllocatedCells(); cells > 0 {
		fmt.Fprintln(c.out, c.warn(fmt.Sprintf("%d over-allocated cell(s) marked with !", cells)))
	}
	fmt.Fprintf(c.out, "view: %s, target: %s\n", m.View, percentText(c.svc.Engine().Settings().UtilizationTarget))
}

func (c *cli) renderPeople(people []model.Person) {
	if len(people) == 0 {
		fmt.Fprintln(c.out, "no people")
		return
	}
	t := c.table("Code", "ID", "Name", "Designation", "h/week", "Skills", "Status", "Last day")
	for _, p := range people {
		last := ""
		if p.LastWorkingDay != nil {
			last = c.date(*p.LastWorkingDay)
		}
		t.Append([]string{
			p.ShortCode, p.ID, p.Name, p.Designation,
			hoursText(p.WeeklyCapacityHours), p.Skills.String(), string(p.Status), last,
		})
	}
	t.Render()
}

// teamText lists short codes, leads marked with "*".
func teamText(team []service.TeamMember) string {
	if len(team) == 0 {
		return "-"
	}
	codes := make([]string, 0, len(team))
	for _, m := range team {
		code := cmp.Or(m.Person.ShortCode, m.Person.ID)
		if m.Lead {
			code += "*"
		}
		codes = append(codes, code)
	}
	return strings.Join(codes, ", ")
}

func (c *cli) renderProjects(projects []model.Project, teams map[string][]service.TeamMember) {
	if len(projects) == 0 {
		fmt.Fprintln(c.out, "no projects")
		return
	}
	t := c.table("Code", "ID", "Name", "Status", "Probability", "Hours needed", "Team", "Required skills")
	for _, p := range projects {
		needed := ""
		if p.TotalHoursNeeded != nil {
			needed = hoursText(*p.TotalHoursNeeded)
		}
		t.Append([]string{
			p.ShortCode, p.ID, p.Name, string(p.Status),
			percentText(p.Probability() * 100), needed, teamText(teams[p.ID]), p.RequiredSkills.String(),
		})
	}
	t.Render()
}

func (c *cli) renderCandidates(candidates []service.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(c.out, "no available people")
		return
	}
	t := c.table("Code", "Name", "Experience", "Skills", "Matches")
	for _, cand := range candidates {
		match := color.Yellow.Sprint("no")
		if cand.MatchesRequirements {
			match = color.Green.Sprint("yes")
		}
		t.Append([]string{
			cand.Person.ShortCode, cand.Person.Name,
			strconv.FormatFloat(cand.ExperienceYears, 'f', 1, 64), cand.Person.Skills.String(), match,
		})
	}
	t.Render()
}

func (c *cli) renderAllocations(list []model.Allocation) {
	if len(list) == 0 {
		fmt.Fprintln(c.out, "no allocations")
		return
	}
	t := c.table("ID", "Person", "Project", "Start", "End", "h/week", "Lead", "Withdrawn")
	for _, a := range list {
		withdrawn, lead := "", ""
		if a.Lead {
			lead = "yes"
		}
		if a.WithdrawnOn != nil {
			withdrawn = c.date(*a.WithdrawnOn)
		}
		t.Append([]string{
			a.ID, a.PersonID, a.ProjectID, c.date(a.Start), c.date(a.End),
			hoursText(a.HoursPerWeek), lead, withdrawn,
		})
	}
	t.Render()
}

func (c *cli) renderTimeOff(entries []forecast.TimeOffEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no time-off")
		return
	}
	t := c.table("Code", "Name", "Start", "End", "Working days", "Reason", "ID")
	for _, e := range entries {
		t.Append([]string{
			e.ShortCode, e.Name, c.date(e.TimeOff.Start), c.date(e.TimeOff.End),
			strconv.Itoa(e.WorkingDays), e.TimeOff.Reason, e.TimeOff.ID,
		})
	}
	t.Render()
}

func (c *cli) renderSkillGaps(gaps []forecast.SkillGap) {
	if len(gaps) == 0 {
		fmt.Fprintln(c.out, "no required skills")
		return
	}
	t := c.table("Skill", "Required", "Projects", "Best held", "Covering", "Free h", "Status")
	for _, g := range gaps {
		status := color.Green.Sprint("covered")
		if g.Gap {
			status = color.Red.Sprint("GAP")
		}
		t.Append([]string{
			g.Skill, strconv.Itoa(g.RequiredLevel), strings.Join(g.Projects, ", "),
			strconv.Itoa(g.AvailableLevel), strconv.Itoa(g.Covering), hoursText(g.FreeHours), status,
		})
	}
	t.Render()
}

func (c *cli) renderCapacity(res availability.Result) {
	t := c.table("Person", res.PersonID)
	t.Append([]string{"Interval", res.Interval.String()})
	t.Append([]string{"Usable", res.Usable.String()})
	t.Append([]string{"Gross hours", hoursText(res.GrossHours)})
	t.Append([]string{"Time-off hours", hoursText(res.TimeOffHours)})
	t.Append([]string{"Capacity hours", hoursText(res.CapacityHours)})
	t.Append([]string{"Allocated hours", hoursText(res.AllocatedHours)})
	t.Append([]string{"Free hours", hoursText(res.FreeHours)})
	for _, id := range slices.Sorted(maps.Keys(res.ByProject)) {
		t.Append([]string{"  " + id, hoursText(res.ByProject[id])})
	}
	over := "no"
	if res.OverAllocated {
		over = color.Red.Sprint("yes")
	}
	t.Append([]string{"Over-allocated", over})
	t.Render()
}
