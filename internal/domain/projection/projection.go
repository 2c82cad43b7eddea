// Package projection replays journal events into a model.Snapshot.
//
// Rebuild and Apply share one code path, so folding Apply over a sequence of
// events always yields the same snapshot as Rebuild over that sequence.
package projection

import (
	"context"
	"fmt"
	"iter"

	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

// Empty returns the snapshot of an empty journal.
func Empty() *model.Snapshot {
	return model.NewSnapshot()
}

// Apply returns a new snapshot with e applied. s is left untouched, also on error.
func Apply(s *model.Snapshot, e event.Event) (*model.Snapshot, error) {
	next := s.Clone()
	if err := apply(next, e); err != nil {
		return nil, err
	}
	return next, nil
}

// Rebuild replays events from an empty snapshot. The first iteration or replay
// error aborts the rebuild; no partial snapshot is returned.
func Rebuild(ctx context.Context, events iter.Seq2[event.Event, error]) (*model.Snapshot, error) {
	s := Empty()
	for e, err := range events {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := apply(s, e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// apply mutates s in place. Callers own s exclusively.
func apply(s *model.Snapshot, e event.Event) error {
	payload, err := event.Decode(e)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *event.PersonAdded:
		err = addPerson(s, e.ID, p)
	case *event.PersonEdited:
		err = editPerson(s, p)
	case *event.PersonOffboarded:
		err = offboardPerson(s, p)
	case *event.PersonDeleted:
		err = deletePerson(s, p)
	case *event.TimeOffLogged:
		err = logTimeOff(s, p)
	case *event.ProjectAdded:
		err = addProject(s, e.ID, p)
	case *event.ProjectEdited:
		err = editProject(s, p)
	case *event.ProjectDeleted:
		err = deleteProject(s, p)
	case *event.Allocated:
		err = allocate(s, e.ID, p)
	case *event.Unallocated:
		err = unallocate(s, p)
	default:
		err = &event.UnknownEventTypeError{Type: e.Type, EventID: e.ID}
	}
	if err != nil {
		return fmt.Errorf("apply event %d (%s): %w", e.ID, e.Type, err)
	}

	s.LastEventID = e.ID
	s.EventCount++
	return nil
}
