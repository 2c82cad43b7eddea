package forecast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rostr/internal/domain/availability"
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/forecast"
	"github.com/okian/rostr/internal/domain/model"
	"github.com/okian/rostr/internal/domain/projection"
)

func snapshotOf(payloads ...event.Payload) *model.Snapshot {
	events := make([]event.Event, 0, len(payloads))
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, p := range payloads {
		events = append(events, event.MustNew(uint64(i+1), at, p))
	}
	s, err := projection.Rebuild(context.Background(), event.Sequence(events))
	if err != nil {
		panic(err)
	}
	return s
}

func alloc(id, person, project, from, to string, hours float64) event.Allocated {
	return event.Allocated{
		AllocationID: id, PersonID: person, ProjectID: project,
		StartDate: model.MustDate(from), EndDate: model.MustDate(to), HoursPerWeek: hours,
	}
}

var (
	ada    = event.PersonAdded{PersonID: "ada", Name: "Ada Lovelace", WeeklyCapacityHours: 40, Skills: map[string]int{"go": 3}}
	bob    = event.PersonAdded{PersonID: "bob", Name: "Bob Babbage", WeeklyCapacityHours: 40, Skills: map[string]int{"go": 1, "sql": 2}}
	apollo = event.ProjectAdded{ProjectID: "apollo", Name: "Apollo", Status: model.ProjectActive, WinProbability: 1}
	gemini = event.ProjectAdded{ProjectID: "gemini", Name: "Gemini", Status: model.ProjectProposed, WinProbability: 0.5}
)

func TestBuckets(t *testing.T) {
	Convey("Given a start date", t, func() {
		start := model.MustDate("2024-01-15")

		Convey("When building week buckets", func() {
			buckets, err := forecast.Buckets(start, forecast.Week, 3)
			So(err, ShouldBeNil)
			So(buckets, ShouldHaveLength, 3)
			So(buckets[0].Label, ShouldEqual, "Wk Jan 15")
			So(buckets[2].To, ShouldEqual, model.MustDate("2024-02-04"))
			So(forecast.CheckBuckets(buckets), ShouldBeNil)
		})

		Convey("When building month buckets", func() {
			buckets, err := forecast.Buckets(start, forecast.Month, 2)
			So(err, ShouldBeNil)
			So(buckets[0].Interval, ShouldResemble, model.Interval{From: start, To: model.MustDate("2024-01-31")})
			So(buckets[1].Interval, ShouldResemble, model.Interval{From: model.MustDate("2024-02-01"), To: model.MustDate("2024-02-29")})
			So(buckets[1].Label, ShouldEqual, "Feb 2024")
		})

		Convey("When building day buckets", func() {
			buckets, err := forecast.Buckets(start, forecast.Day, 2)
			So(err, ShouldBeNil)
			So(buckets[1].From, ShouldEqual, buckets[1].To)
			So(forecast.Span(buckets), ShouldResemble, model.Interval{From: start, To: start.AddDays(1)})
		})

		Convey("When periods is not positive", func() {
			_, err := forecast.Buckets(start, forecast.Day, 0)
			So(errors.Is(err, forecast.ErrInvalidPeriods), ShouldBeTrue)
		})

		Convey("When the granularity is unknown", func() {
			_, err := forecast.ParseGranularity("fortnight")
			So(errors.Is(err, forecast.ErrUnknownGranularity), ShouldBeTrue)
		})

		Convey("When caller-built buckets leave a hole", func() {
			err := forecast.CheckBuckets([]forecast.Bucket{
				{Interval: model.Interval{From: start, To: start}},
				{Interval: model.Interval{From: start.AddDays(2), To: start.AddDays(2)}},
			})
			So(errors.Is(err, forecast.ErrNonContiguousBucket), ShouldBeTrue)
		})
	})
}

func TestViews(t *testing.T) {
	Convey("Given a person with 20 hours a week on a 50% pipeline project", t, func() {
		s := snapshotOf(ada, gemini, alloc("a1", "ada", "gemini", "2024-01-01", "2024-01-31", 20))
		engine := forecast.NewEngine(nil, forecast.DefaultSettings())
		asOf := model.MustDate("2024-01-15")

		hours := func(view forecast.View) float64 {
			m, err := engine.Current(s, asOf, view)
			So(err, ShouldBeNil)
			return m.Rows[0].Cells[0].EffectiveHours
		}

		Convey("Then the views weight it 10, 20 and 0 hours", func() {
			So(hours(forecast.All), ShouldEqual, 10)
			So(hours(forecast.ProbableOnly), ShouldEqual, 20)
			So(hours(forecast.ActiveOnly), ShouldEqual, 0)
		})

		Convey("Then an unknown view is rejected", func() {
			_, err := forecast.ParseView("maybe")
			So(errors.Is(err, forecast.ErrUnknownView), ShouldBeTrue)
		})
	})
}

func TestCurrent(t *testing.T) {
	Convey("Given a person allocated 20 hours a week to an active project in January", t, func() {
		s := snapshotOf(ada, apollo, alloc("a1", "ada", "apollo", "2024-01-01", "2024-01-31", 20))
		engine := forecast.NewEngine(availability.NewCalculator(), forecast.DefaultSettings())

		Convey("When reporting current utilization on 2024-01-15", func() {
			m, err := engine.Current(s, model.MustDate("2024-01-15"), forecast.All)
			So(err, ShouldBeNil)
			cell := m.Rows[0].Cells[0]

			Convey("Then the person is at 50% on the project", func() {
				pct, ok := cell.Utilization()
				So(ok, ShouldBeTrue)
				So(pct, ShouldEqual, 50)
				So(cell.Breakdown, ShouldResemble, map[string]float64{"apollo": 20})
				So(engine.Band(pct), ShouldEqual, forecast.BandUnder)
			})
		})
	})
}

func TestTimeline(t *testing.T) {
	Convey("Given a person with time off and an offboarded colleague", t, func() {
		s := snapshotOf(ada, bob, apollo,
			alloc("a1", "ada", "apollo", "2024-01-01", "2024-01-31", 10),
			alloc("a2", "bob", "apollo", "2024-01-01", "2024-01-31", 20),
			event.TimeOffLogged{TimeOffID: "t1", PersonID: "ada",
				StartDate: model.MustDate("2024-01-10"), EndDate: model.MustDate("2024-01-12")},
			event.TimeOffLogged{TimeOffID: "t2", PersonID: "ada",
				StartDate: model.MustDate("2024-01-22"), EndDate: model.MustDate("2024-01-26")},
			event.PersonOffboarded{PersonID: "bob", LastWorkingDay: model.MustDate("2024-01-10")},
		)
		engine := forecast.NewEngine(nil, forecast.DefaultSettings())

		Convey("When rendering a weekly timeline", func() {
			m, err := engine.Timeline(s, forecast.People, model.MustDate("2024-01-01"), forecast.Week, 4, forecast.All)
			So(err, ShouldBeNil)
			So(m.Rows, ShouldHaveLength, 2)
			adaRow, bobRow := m.Rows[0], m.Rows[1]

			Convey("Then the week with three days off has reduced free hours", func() {
				normal, reduced := adaRow.Cells[0], adaRow.Cells[1]
				So(normal.FreeHours, ShouldEqual, 30)
				So(reduced.FreeHours, ShouldEqual, 6)
				So(reduced.TimeOffHours, ShouldEqual, 24)
				So(reduced.Percent, ShouldEqual, 62.5)
			})

			Convey("Then a week fully off is not applicable and still over-allocated", func() {
				off := adaRow.Cells[3]
				So(off.Applicable, ShouldBeFalse)
				So(off.Reason, ShouldEqual, forecast.ReasonTimeOff)
				So(off.OverAllocated, ShouldBeTrue)
			})

			Convey("Then the straddling week is pro-rated and later weeks show left", func() {
				So(bobRow.Cells[1].CapacityHours, ShouldEqual, 24)
				So(bobRow.Cells[1].EffectiveHours, ShouldEqual, 12)
				So(bobRow.Cells[2].Applicable, ShouldBeFalse)
				So(bobRow.Cells[2].Reason, ShouldEqual, forecast.ReasonLeft)
				So(bobRow.Cells[2].FreeHours, ShouldEqual, 0)
			})
		})

		Convey("When rendering a weekend day", func() {
			m, err := engine.Timeline(s, forecast.People, model.MustDate("2024-01-06"), forecast.Day, 1, forecast.All)
			So(err, ShouldBeNil)
			So(m.Rows[0].Cells[0].Reason, ShouldEqual, forecast.ReasonNoWorkingDays)
		})

		Convey("When rendering project rows", func() {
			m, err := engine.Timeline(s, forecast.Projects, model.MustDate("2024-01-01"), forecast.Week, 1, forecast.All)
			So(err, ShouldBeNil)
			cell := m.Rows[0].Cells[0]
			So(cell.CapacityHours, ShouldEqual, 80)
			So(cell.EffectiveHours, ShouldEqual, 30)
			So(cell.Percent, ShouldEqual, 37.5)
			So(cell.Breakdown, ShouldResemble, map[string]float64{"ada": 10, "bob": 20})
		})
	})
}

func TestRowOrder(t *testing.T) {
	Convey("Given people added out of alphabetical order", t, func() {
		s := snapshotOf(bob, ada, gemini)

		Convey("When the engine uses insertion order", func() {
			m, err := forecast.NewEngine(nil, forecast.DefaultSettings()).
				Timeline(s, forecast.People, model.MustDate("2024-01-01"), forecast.Week, 1, forecast.All)
			So(err, ShouldBeNil)
			So(m.Rows[0].ID, ShouldEqual, "bob")
		})

		Convey("When the engine uses alphabetical order", func() {
			settings := forecast.Settings{Order: model.OrderAlphabetical}
			m, err := forecast.NewEngine(nil, settings).
				Timeline(s, forecast.People, model.MustDate("2024-01-01"), forecast.Week, 1, forecast.All)
			So(err, ShouldBeNil)
			So(m.Rows[0].ID, ShouldEqual, "ada")
		})

		Convey("When the caller names the rows", func() {
			engine := forecast.NewEngine(nil, forecast.DefaultSettings())
			buckets, _ := forecast.Buckets(model.MustDate("2024-01-01"), forecast.Week, 1)

			m, err := engine.BuildMatrix(s, forecast.People, buckets, forecast.All, "ada", "bob")
			So(err, ShouldBeNil)
			So(m.Rows[0].ID, ShouldEqual, "ada")

			_, err = engine.BuildMatrix(s, forecast.People, buckets, forecast.All, "carol")
			So(errors.Is(err, model.ErrUnknownEntity), ShouldBeTrue)
		})

		Convey("When an unstaffed project is reported", func() {
			engine := forecast.NewEngine(nil, forecast.DefaultSettings())
			m, err := engine.Timeline(s, forecast.Projects, model.MustDate("2024-01-01"), forecast.Week, 1, forecast.All)
			So(err, ShouldBeNil)
			So(m.Rows[0].Cells[0].Reason, ShouldEqual, forecast.ReasonUnstaffed)
		})
	})
}

func TestForecast(t *testing.T) {
	Convey("Given allocations starting next month", t, func() {
		s := snapshotOf(ada, apollo, alloc("a1", "ada", "apollo", "2024-02-01", "2024-03-31", 20))
		engine := forecast.NewEngine(nil, forecast.DefaultSettings())

		Convey("When forecasting two months from mid-January", func() {
			m, err := engine.Forecast(s, model.MustDate("2024-01-15"), 2, forecast.ActiveOnly)
			So(err, ShouldBeNil)

			Convey("Then buckets are February and March", func() {
				So(m.Buckets[0].From, ShouldEqual, model.MustDate("2024-02-01"))
				So(m.Buckets[1].To, ShouldEqual, model.MustDate("2024-03-31"))
			})

			Convey("Then every month is half utilized", func() {
				So(m.Rows[0].Cells[0].Percent, ShouldEqual, 50)
				So(m.Rows[0].Cells[1].Percent, ShouldEqual, 50)
				So(m.OverAllocatedCells(), ShouldEqual, 0)
			})
		})
	})
}

func TestBand(t *testing.T) {
	Convey("Given a 75% target", t, func() {
		engine := forecast.NewEngine(nil, forecast.DefaultSettings())

		So(engine.Band(120), ShouldEqual, forecast.BandOver)
		So(engine.Band(100), ShouldEqual, forecast.BandHealthy)
		So(engine.Band(75), ShouldEqual, forecast.BandHealthy)
		So(engine.Band(74.9), ShouldEqual, forecast.BandUnder)
	})
}

func TestTimeOffReport(t *testing.T) {
	Convey("Given logged time off", t, func() {
		s := snapshotOf(ada, bob,
			event.TimeOffLogged{TimeOffID: "t2", PersonID: "ada",
				StartDate: model.MustDate("2024-03-04"), EndDate: model.MustDate("2024-03-08"), Reason: "Conference"},
			event.TimeOffLogged{TimeOffID: "t1", PersonID: "ada",
				StartDate: model.MustDate("2024-01-10"), EndDate: model.MustDate("2024-01-12"), Reason: "PTO"},
			event.TimeOffLogged{TimeOffID: "t3", PersonID: "bob",
				StartDate: model.MustDate("2024-01-01"), EndDate: model.MustDate("2024-01-01")},
		)
		engine := forecast.NewEngine(nil, forecast.DefaultSettings())

		Convey("Then entries are listed per person chronologically", func() {
			entries := engine.TimeOffReport(s, nil)
			So(entries, ShouldHaveLength, 3)
			So(entries[0].TimeOff.ID, ShouldEqual, "t1")
			So(entries[0].WorkingDays, ShouldEqual, 3)
			So(entries[1].TimeOff.ID, ShouldEqual, "t2")
			So(entries[2].PersonID, ShouldEqual, "bob")
		})

		Convey("Then a window keeps overlapping entries only", func() {
			window := model.Interval{From: model.MustDate("2024-03-01"), To: model.MustDate("2024-03-31")}
			entries := engine.TimeOffReport(s, &window)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].TimeOff.Reason, ShouldEqual, "Conference")
		})

		Convey("Then no time off yields an empty report", func() {
			So(engine.TimeOffReport(snapshotOf(ada), nil), ShouldBeEmpty)
		})
	})
}

func TestSkillGap(t *testing.T) {
	Convey("Given open projects with required skills", t, func() {
		needsGo := event.ProjectAdded{ProjectID: "apollo", Name: "Apollo", Status: model.ProjectActive,
			RequiredSkills: map[string]int{"go": 2, "rust": 1}}
		s := snapshotOf(ada, bob, needsGo,
			alloc("a1", "ada", "apollo", "2024-01-01", "2024-01-31", 40))
		engine := forecast.NewEngine(nil, forecast.DefaultSettings())

		gaps, err := engine.SkillGap(s, model.MustDate("2024-01-15"))
		So(err, ShouldBeNil)
		So(gaps, ShouldHaveLength, 2)

		Convey("Then a skill held only by fully booked people is a gap", func() {
			goGap := gaps[0]
			So(goGap.Skill, ShouldEqual, "go")
			So(goGap.RequiredLevel, ShouldEqual, 2)
			So(goGap.AvailableLevel, ShouldEqual, 3)
			So(goGap.Holders, ShouldHaveLength, 2)
			So(goGap.Covering, ShouldEqual, 0)
			So(goGap.Gap, ShouldBeTrue)
		})

		Convey("Then a skill nobody holds is a gap", func() {
			So(gaps[1].Skill, ShouldEqual, "rust")
			So(gaps[1].Holders, ShouldBeEmpty)
			So(gaps[1].Gap, ShouldBeTrue)
		})

		Convey("Then a requested skill without projects is covered by free holders", func() {
			sql, err := engine.SkillGap(s, model.MustDate("2024-01-15"), "sql")
			So(err, ShouldBeNil)
			So(sql[0].Projects, ShouldBeEmpty)
			So(sql[0].Covering, ShouldEqual, 1)
			So(sql[0].FreeHours, ShouldEqual, 40)
			So(sql[0].Gap, ShouldBeFalse)
		})
	})
}
