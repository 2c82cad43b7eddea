package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

func history() []event.Event {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payloads := []event.Payload{
		event.PersonAdded{PersonID: "ada", Name: "Ada Lovelace", ShortCode: "AdaL", WeeklyCapacityHours: 40, Skills: map[string]int{"Go": 3}},
		event.PersonAdded{PersonID: "bob", Name: "Bob Stone", WeeklyCapacityHours: 32},
		event.ProjectAdded{ProjectID: "apollo", Name: "Apollo", Status: model.ProjectActive, WinProbability: 0.4},
		event.ProjectAdded{ProjectID: "gemini", Name: "Gemini", Status: model.ProjectProposed, WinProbability: 0.5},
		event.Allocated{AllocationID: "a1", PersonID: "ada", ProjectID: "apollo", StartDate: model.MustDate("2024-01-01"), EndDate: model.MustDate("2024-03-31"), HoursPerWeek: 20},
		event.Allocated{AllocationID: "a2", PersonID: "bob", ProjectID: "gemini", StartDate: model.MustDate("2024-02-01"), EndDate: model.MustDate("2024-02-29"), HoursPerWeek: 10},
		event.TimeOffLogged{TimeOffID: "t1", PersonID: "ada", StartDate: model.MustDate("2024-01-10"), EndDate: model.MustDate("2024-01-12"), Reason: "PTO"},
		event.TimeOffLogged{TimeOffID: "t2", PersonID: "ada", StartDate: model.MustDate("2024-01-11"), EndDate: model.MustDate("2024-01-15"), Reason: "Sick"},
		event.PersonEdited{PersonID: "bob", Name: ptr("Robert Stone")},
		event.ProjectEdited{ProjectID: "gemini", Status: ptr(model.ProjectActive)},
		event.Unallocated{AllocationID: "a1", WithdrawnOn: model.MustDate("2024-03-01")},
		event.Unallocated{AllocationID: "a1", WithdrawnOn: model.MustDate("2024-03-15")},
		event.PersonOffboarded{PersonID: "bob", LastWorkingDay: model.MustDate("2024-02-15")},
		event.ProjectDeleted{ProjectID: "apollo"},
		event.PersonDeleted{PersonID: "bob", Reason: "left"},
	}
	out := make([]event.Event, len(payloads))
	for i, p := range payloads {
		out[i] = event.MustNew(uint64(i+1), at.AddDate(0, 0, i), p)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestRebuild(t *testing.T) {
	Convey("Given a history touching every event type", t, func() {
		ctx := context.Background()
		events := history()

		s, err := Rebuild(ctx, event.Sequence(events))
		So(err, ShouldBeNil)

		Convey("Then the snapshot reflects the last state of each entity", func() {
			So(s.LastEventID, ShouldEqual, 15)
			So(s.EventCount, ShouldEqual, 15)
			So(s.PersonOrder, ShouldResemble, []string{"ada", "bob"})

			ada := s.People["ada"]
			So(ada.Skills, ShouldResemble, model.Skills{"go": 3})
			So(ada.TimeOff, ShouldHaveLength, 2)
			So(model.MergeIntervals(ada.TimeOffIntervals()), ShouldResemble, []model.Interval{
				{From: model.MustDate("2024-01-10"), To: model.MustDate("2024-01-15")},
			})

			bob := s.People["bob"]
			So(bob.Name, ShouldEqual, "Robert Stone")
			So(bob.Status, ShouldEqual, model.PersonDeleted)
			So(*bob.LastWorkingDay, ShouldEqual, model.MustDate("2024-02-15"))

			So(s.Projects["apollo"].Status, ShouldEqual, model.ProjectDeleted)
			So(s.Projects["gemini"].Probability(), ShouldEqual, 1)
		})

		Convey("Then repeated withdrawals keep the earliest date", func() {
			So(*s.Allocations["a1"].WithdrawnOn, ShouldEqual, model.MustDate("2024-03-01"))
		})

		Convey("Then confirmed projects keep their stored probability", func() {
			first, err := Rebuild(ctx, event.Sequence(events[:3]))
			So(err, ShouldBeNil)
			So(first.Projects["apollo"].WinProbability, ShouldEqual, 0.4)
			So(first.Projects["apollo"].Probability(), ShouldEqual, 1)
		})

		Convey("Then a project moved back to proposed weighs its own probability again", func() {
			at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			demoted, err := Apply(s, event.MustNew(16, at, event.ProjectEdited{ProjectID: "gemini", Status: ptr(model.ProjectProposed)}))
			So(err, ShouldBeNil)
			So(demoted.Projects["gemini"].Probability(), ShouldEqual, 0.5)
		})

		Convey("Then folding Apply gives the same snapshot for every prefix", func() {
			folded := Empty()
			for i, e := range events {
				next, err := Apply(folded, e)
				So(err, ShouldBeNil)
				folded = next

				rebuilt, err := Rebuild(ctx, event.Sequence(events[:i+1]))
				So(err, ShouldBeNil)
				So(folded, ShouldResemble, rebuilt)
			}
		})

		Convey("Then replaying twice is deterministic", func() {
			again, err := Rebuild(ctx, event.Sequence(events))
			So(err, ShouldBeNil)
			So(again, ShouldResemble, s)
		})
	})
}

func TestApplyRejects(t *testing.T) {
	Convey("Given a snapshot with one person and one project", t, func() {
		base, err := Rebuild(context.Background(), event.Sequence(history()[:3]))
		So(err, ShouldBeNil)

		cases := []struct {
			name    string
			payload event.Payload
			target  error
		}{
			{"a second live person with the same id", event.PersonAdded{PersonID: "ada", Name: "Ada"}, model.ErrDuplicateID},
			{"an edit of an unknown person", event.PersonEdited{PersonID: "zed", Name: ptr("Zed")}, model.ErrUnknownEntity},
			{"an allocation on an unknown project", event.Allocated{AllocationID: "x", PersonID: "ada", ProjectID: "nope"}, model.ErrUnknownEntity},
			{"a withdrawal of an unknown allocation", event.Unallocated{AllocationID: "x"}, model.ErrUnknownEntity},
			{"a project id reused while live", event.ProjectAdded{ProjectID: "apollo", Name: "Apollo"}, model.ErrDuplicateID},
		}

		for _, c := range cases {
			Convey("When applying "+c.name, func() {
				before := base.Clone()
				next, err := Apply(base, event.MustNew(4, time.Time{}, c.payload))

				Convey("Then it fails and leaves the snapshot untouched", func() {
					So(errors.Is(err, c.target), ShouldBeTrue)
					So(next, ShouldBeNil)
					So(base, ShouldResemble, before)
				})
			})
		}

		Convey("When the event type is unknown", func() {
			_, err := Apply(base, event.Event{ID: 4, Type: "PersonRenamed", Payload: []byte(`{}`)})

			Convey("Then replay stops on it", func() {
				So(errors.Is(err, event.ErrUnknownEventType), ShouldBeTrue)
			})
		})

		Convey("When a deleted person is added again", func() {
			s, err := Apply(base, event.MustNew(4, time.Time{}, event.PersonDeleted{PersonID: "ada"}))
			So(err, ShouldBeNil)
			s, err = Apply(s, event.MustNew(5, time.Time{}, event.PersonAdded{PersonID: "ada", Name: "Ada Again"}))

			Convey("Then the id is reused in its original position", func() {
				So(err, ShouldBeNil)
				So(s.PersonOrder, ShouldResemble, []string{"ada", "bob"})
				So(s.People["ada"].Name, ShouldEqual, "Ada Again")
			})
		})

		Convey("When a person is deleted and added again after being booked", func() {
			s := base
			for i, p := range []event.Payload{
				event.Allocated{AllocationID: "old", PersonID: "ada", ProjectID: "apollo", StartDate: model.MustDate("2024-01-01"), EndDate: model.MustDate("2024-12-31"), HoursPerWeek: 30},
				event.PersonDeleted{PersonID: "ada"},
				event.PersonAdded{PersonID: "ada", Name: "Ada Again", WeeklyCapacityHours: 40},
			} {
				s, err = Apply(s, event.MustNew(uint64(4+i), time.Time{}, p))
				So(err, ShouldBeNil)
			}

			Convey("Then the bookings of the deleted incarnation are gone", func() {
				So(s.AllocationsFor("ada"), ShouldBeEmpty)
				So(s.AllocationsOn("apollo"), ShouldBeEmpty)
				_, ok := s.Allocation("old")
				So(ok, ShouldBeFalse)
			})

			Convey("Then the old booking cannot be withdrawn", func() {
				_, err := Apply(s, event.MustNew(7, time.Time{}, event.Unallocated{AllocationID: "old", WithdrawnOn: model.MustDate("2024-02-01")}))
				So(errors.Is(err, model.ErrUnknownEntity), ShouldBeTrue)
			})

			Convey("Then new bookings count", func() {
				next, err := Apply(s, event.MustNew(7, time.Time{}, event.Allocated{AllocationID: "new", PersonID: "ada", ProjectID: "apollo", StartDate: model.MustDate("2024-01-01"), EndDate: model.MustDate("2024-01-31"), HoursPerWeek: 10, Lead: true}))
				So(err, ShouldBeNil)
				So(next.AllocationsFor("ada"), ShouldHaveLength, 1)
				So(next.AllocationsFor("ada")[0].Lead, ShouldBeTrue)
			})
		})
	})
}

func TestRebuildStopsOnIteratorError(t *testing.T) {
	Convey("Given an iterator that fails midway", t, func() {
		boom := errors.New("torn record")
		events := func(yield func(event.Event, error) bool) {
			if !yield(history()[0], nil) {
				return
			}
			yield(event.Event{}, boom)
		}

		Convey("Then no partial snapshot is returned", func() {
			s, err := Rebuild(context.Background(), events)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(s, ShouldBeNil)
		})
	})
}
