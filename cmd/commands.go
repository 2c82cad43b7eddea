package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	service "github.com/okian/rostr/internal/app"
	"github.com/okian/rostr/internal/config"
	"github.com/okian/rostr/internal/domain/forecast"
	"github.com/okian/rostr/internal/domain/model"
)

// cli binds command lines to the service.
type cli struct {
	svc    *service.Service
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
}

type handler func(ctx context.Context, args []string) error

func (c *cli) commands() map[string]handler {
	return map[string]handler{
		"person add":         c.personAdd,
		"person edit":        c.personEdit,
		"person offboard":    c.personOffboard,
		"person delete":      c.personDelete,
		"person list":        c.personList,
		"timeoff":            c.timeOff,
		"project add":        c.projectAdd,
		"project edit":       c.projectEdit,
		"project delete":     c.projectDelete,
		"project list":       c.projectList,
		"project candidates": c.projectCandidates,
		"allocate":           c.allocate,
		"unallocate":         c.unallocate,
		"allocations":        c.allocations,
		"report current":     c.reportCurrent,
		"report timeline":    c.reportTimeline,
		"report forecast":    c.reportForecast,
		"report timeoff":     c.reportTimeOff,
		"report skills":      c.reportSkills,
		"report capacity":    c.reportCapacity,
		"rebuild":            c.rebuild,
	}
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	cmds := c.commands()
	if len(args) >= 2 {
		if h, ok := cmds[args[0]+" "+args[1]]; ok {
			return h(ctx, args[2:])
		}
	}
	if h, ok := cmds[args[0]]; ok {
		return h(ctx, args[1:])
	}
	return usageErrorf("unknown command %q", strings.Join(args[:min(2, len(args))], " "))
}

func (c *cli) personAdd(ctx context.Context, args []string) error {
	fs := c.flags("person add")
	id := fs.String("id", "", "person id (defaults to the email)")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	designation := fs.String("designation", "", "job title")
	hours := fs.Float64("hours", c.cfg.DefaultWeeklyHours, "weekly capacity in hours")
	skills := fs.String("skills", "", "skills as name:level, comma separated")
	experience := fs.Float64("experience", 0, "years of experience")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	skillMap, err := parseSkills(*skills)
	if err != nil {
		return err
	}

	p, err := c.svc.AddPerson(ctx, service.AddPerson{
		ID:              *id,
		Name:            *name,
		Email:           *email,
		Designation:     *designation,
		WeeklyHours:     hours,
		Skills:          skillMap,
		ExperienceYears: *experience,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "added %s (%s) with %s h/week\n", p.Name, p.ShortCode, hoursText(p.WeeklyCapacityHours))
	return nil
}

func (c *cli) personEdit(ctx context.Context, args []string) error {
	fs := c.flags("person edit")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	designation := fs.String("designation", "", "job title")
	hours := fs.Float64("hours", 0, "weekly capacity in hours")
	skills := fs.String("skills", "", "replace skills with name:level, comma separated")
	experience := fs.Float64("experience", 0, "years of experience as of today")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	cmd := service.EditPerson{Person: pos[0]}
	set := visited(fs)
	if set["name"] {
		cmd.Name = name
	}
	if set["email"] {
		cmd.Email = email
	}
	if set["designation"] {
		cmd.Designation = designation
	}
	if set["hours"] {
		cmd.WeeklyHours = hours
	}
	if set["skills"] {
		m, err := parseSkills(*skills)
		if err != nil {
			return err
		}
		cmd.Skills = &m
	}
	if set["experience"] {
		cmd.ExperienceYears = experience
	}

	p, err := c.svc.EditPerson(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "updated %s (%s)\n", p.Name, p.ShortCode)
	return nil
}

func (c *cli) personOffboard(ctx context.Context, args []string) error {
	fs := c.flags("person offboard")
	lastDay := c.dateFlag(fs, "last-day", "last working day")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := require(fs, "last-day", lastDay); err != nil {
		return err
	}
	p, err := c.svc.OffboardPerson(ctx, service.OffboardPerson{Person: pos[0], LastWorkingDay: lastDay.date})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s's last working day is %s\n", p.Name, c.date(*p.LastWorkingDay))
	return nil
}

func (c *cli) personDelete(ctx context.Context, args []string) error {
	fs := c.flags("person delete")
	reason := fs.String("reason", "", "why the person is removed")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := c.svc.DeletePerson(ctx, service.DeletePerson{Person: pos[0], Reason: *reason}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %s\n", pos[0])
	return nil
}

func (c *cli) personList(ctx context.Context, args []string) error {
	fs := c.flags("person list")
	skill := fs.String("skill", "", "only people with this skill")
	search := fs.String("search", "", "match id, name, email, code, designation or skill")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	people, err := c.svc.ListPeople(ctx, service.PeopleFilter{Skill: *skill, Search: *search})
	if err != nil {
		return err
	}
	c.renderPeople(people)
	return nil
}

func (c *cli) timeOff(ctx context.Context, args []string) error {
	fs := c.flags("timeoff")
	start := c.dateFlag(fs, "start", "first day off")
	end := c.dateFlag(fs, "end", "last day off, inclusive (defaults to start)")
	reason := fs.String("reason", "", "reason (defaults to "+service.DefaultTimeOffReason+")")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := require(fs, "start", start); err != nil {
		return err
	}
	last := start.date
	if end.set {
		last = end.date
	}

	entry, err := c.svc.LogTimeOff(ctx, service.LogTimeOff{Person: pos[0], StartDate: start.date, EndDate: last, Reason: *reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged %s for %s from %s to %s (id %s)\n",
		entry.Reason, pos[0], c.date(entry.Start), c.date(entry.End), entry.ID)
	return nil
}

func (c *cli) projectAdd(ctx context.Context, args []string) error {
	fs := c.flags("project add")
	name := fs.String("name", "", "project name")
	description := fs.String("description", "", "description")
	status := fs.String("status", "proposed", "proposed, active, completed or dropped")
	probability := fs.Float64("probability", 0, "win probability between 0 and 1")
	hours := fs.Float64("hours", 0, "total hours needed")
	skills := fs.String("skills", "", "required skills as name:level, comma separated")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	skillMap, err := parseSkills(*skills)
	if err != nil {
		return err
	}

	cmd := service.AddProject{Name: *name, Description: *description, Status: *status, RequiredSkills: skillMap}
	set := visited(fs)
	if set["probability"] {
		cmd.WinProbability = probability
	}
	if set["hours"] {
		cmd.TotalHoursNeeded = hours
	}
	p, err := c.svc.AddProject(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "added %s (%s) as %s\n", p.Name, p.ShortCode, p.Status)
	return nil
}

func (c *cli) projectEdit(ctx context.Context, args []string) error {
	fs := c.flags("project edit")
	name := fs.String("name", "", "project name")
	description := fs.String("description", "", "description")
	status := fs.String("status", "", "proposed, active, completed or dropped")
	probability := fs.Float64("probability", 0, "win probability between 0 and 1")
	hours := fs.Float64("hours", 0, "total hours needed")
	skills := fs.String("skills", "", "replace required skills with name:level, comma separated")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	cmd := service.EditProject{Project: pos[0]}
	set := visited(fs)
	if set["name"] {
		cmd.Name = name
	}
	if set["description"] {
		cmd.Description = description
	}
	if set["status"] {
		cmd.Status = status
	}
	if set["probability"] {
		cmd.WinProbability = probability
	}
	if set["hours"] {
		cmd.TotalHoursNeeded = hours
	}
	if set["skills"] {
		m, err := parseSkills(*skills)
		if err != nil {
			return err
		}
		cmd.RequiredSkills = &m
	}

	p, err := c.svc.EditProject(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "updated %s (%s), %s at %s\n", p.Name, p.ShortCode, p.Status, percentText(p.Probability()*100))
	return nil
}

func (c *cli) projectDelete(ctx context.Context, args []string) error {
	fs := c.flags("project delete")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := c.svc.DeleteProject(ctx, service.DeleteProject{Project: pos[0]}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %s\n", pos[0])
	return nil
}

func (c *cli) projectList(ctx context.Context, args []string) error {
	fs := c.flags("project list")
	skill := fs.String("skill", "", "only projects requiring this skill")
	search := fs.String("search", "", "match id, name, code or description")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	projects, err := c.svc.ListProjects(ctx, service.ProjectFilter{Skill: *skill, Search: *search})
	if err != nil {
		return err
	}
	teams, err := c.svc.Teams(ctx)
	if err != nil {
		return err
	}
	c.renderProjects(projects, teams)
	return nil
}

func (c *cli) projectCandidates(ctx context.Context, args []string) error {
	fs := c.flags("project candidates")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	candidates, err := c.svc.Candidates(ctx, pos[0])
	if err != nil {
		return err
	}
	c.renderCandidates(candidates)
	return nil
}

func (c *cli) allocate(ctx context.Context, args []string) error {
	fs := c.flags("allocate")
	start := c.dateFlag(fs, "start", "first day")
	end := c.dateFlag(fs, "end", fmt.Sprintf("last day, inclusive (defaults to start + %d days)", c.cfg.DefaultAllocationDays))
	hours := fs.Float64("hours", 0, "hours per week")
	lead := fs.Bool("lead", false, "book the person as project lead")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	if err := require(fs, "start", start); err != nil {
		return err
	}

	res, err := c.svc.Allocate(ctx, service.Allocate{
		Person:       pos[0],
		Project:      pos[1],
		StartDate:    start.date,
		EndDate:      end.ptr(),
		HoursPerWeek: *hours,
		Lead:         *lead,
	})
	if err != nil {
		return err
	}
	a := res.Allocation
	fmt.Fprintf(c.out, "allocated %s to %s for %s h/week from %s to %s (id %s)\n",
		a.PersonID, a.ProjectID, hoursText(a.HoursPerWeek), c.date(a.Start), c.date(a.End), a.ID)
	if a.Lead {
		fmt.Fprintf(c.out, "%s leads %s\n", a.PersonID, a.ProjectID)
	}
	if !res.MatchesRequirements {
		fmt.Fprintln(c.out, c.warn("warning: the person lacks a skill the project requires"))
	}
	for _, week := range res.OverAllocated {
		fmt.Fprintln(c.out, c.warn(fmt.Sprintf("warning: over-allocated in the week of %s", c.date(week.From))))
	}
	return nil
}

func (c *cli) unallocate(ctx context.Context, args []string) error {
	fs := c.flags("unallocate")
	on := c.dateFlag(fs, "on", "first day the allocation no longer counts (defaults to its start)")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	a, err := c.svc.Unallocate(ctx, service.Unallocate{Allocation: pos[0], WithdrawnOn: on.ptr()})
	if err != nil {
		return err
	}
	if a.Effective().Empty() {
		fmt.Fprintf(c.out, "withdrew allocation %s entirely\n", a.ID)
		return nil
	}
	fmt.Fprintf(c.out, "allocation %s now ends on %s\n", a.ID, c.date(a.Effective().To))
	return nil
}

func (c *cli) allocations(ctx context.Context, args []string) error {
	fs := c.flags("allocations")
	all := fs.Bool("all", false, "include withdrawn allocations")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	list, err := c.svc.ListAllocations(ctx, *all)
	if err != nil {
		return err
	}
	c.renderAllocations(list)
	return nil
}

func (c *cli) reportCurrent(ctx context.Context, args []string) error {
	fs := c.flags("report current")
	asOf := c.dateFlag(fs, "as-of", "report the week containing this day (defaults to today)")
	view := fs.String("view", "all", "all, active or probable")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	m, err := c.svc.Current(ctx, service.CurrentQuery{AsOf: asOf.ptr(), View: *view})
	if err != nil {
		return err
	}
	c.renderMatrix(m, layoutCurrent)
	return nil
}

func (c *cli) reportTimeline(ctx context.Context, args []string) error {
	fs := c.flags("report timeline")
	subject := fs.String("subject", string(forecast.People), "people or projects")
	start := c.dateFlag(fs, "start", "first day (defaults to today)")
	interval := fs.String("interval", string(forecast.Week), "day, week or month")
	periods := fs.Int("periods", 8, "number of buckets")
	view := fs.String("view", "all", "all, active or probable")
	ids := fs.String("ids", "", "only these ids or short codes, comma separated")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	m, err := c.svc.Timeline(ctx, service.TimelineQuery{
		Subject:     forecast.Subject(*subject),
		Start:       start.ptr(),
		Granularity: *interval,
		Periods:     *periods,
		View:        *view,
		IDs:         splitList(*ids),
	})
	if err != nil {
		return err
	}
	c.renderMatrix(m, layoutTimeline)
	return nil
}

func (c *cli) reportForecast(ctx context.Context, args []string) error {
	fs := c.flags("report forecast")
	asOf := c.dateFlag(fs, "as-of", "forecast the months after this day (defaults to today)")
	months := fs.Int("months", c.cfg.ForecastMonths, "number of months")
	view := fs.String("view", "all", "all, active or probable")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	m, err := c.svc.Forecast(ctx, service.ForecastQuery{AsOf: asOf.ptr(), Months: *months, View: *view})
	if err != nil {
		return err
	}
	c.renderMatrix(m, layoutForecast)
	return nil
}

func (c *cli) reportTimeOff(ctx context.Context, args []string) error {
	fs := c.flags("report timeoff")
	from := c.dateFlag(fs, "from", "only entries overlapping this window")
	to := c.dateFlag(fs, "to", "end of the window")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	var window *model.Interval
	if from.set || to.set {
		if err := require(fs, "from", from); err != nil {
			return err
		}
		if err := require(fs, "to", to); err != nil {
			return err
		}
		window = &model.Interval{From: from.date, To: to.date}
	}
	entries, err := c.svc.TimeOffReport(ctx, window)
	if err != nil {
		return err
	}
	c.renderTimeOff(entries)
	return nil
}

func (c *cli) reportSkills(ctx context.Context, args []string) error {
	fs := c.flags("report skills")
	asOf := c.dateFlag(fs, "as-of", "measure free hours in the week of this day (defaults to today)")
	skills, err := parse(fs, args, -1)
	if err != nil {
		return err
	}
	gaps, err := c.svc.SkillGap(ctx, asOf.ptr(), skills...)
	if err != nil {
		return err
	}
	c.renderSkillGaps(gaps)
	return nil
}

func (c *cli) reportCapacity(ctx context.Context, args []string) error {
	fs := c.flags("report capacity")
	from := c.dateFlag(fs, "from", "first day")
	to := c.dateFlag(fs, "to", "last day, inclusive")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := require(fs, "from", from); err != nil {
		return err
	}
	if err := require(fs, "to", to); err != nil {
		return err
	}
	res, err := c.svc.Capacity(ctx, pos[0], model.Interval{From: from.date, To: to.date})
	if err != nil {
		return err
	}
	c.renderCapacity(res)
	return nil
}

func (c *cli) rebuild(ctx context.Context, args []string) error {
	fs := c.flags("rebuild")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	snap, err := c.svc.Rebuild(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "replayed %d events (last id %d): %d people, %d projects, %d allocations\n",
		snap.EventCount, snap.LastEventID,
		len(snap.LivePeople(model.OrderInsertion)), len(snap.LiveProjects(model.OrderInsertion)), len(snap.Allocations))
	return nil
}
