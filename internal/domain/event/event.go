// Package event defines the journal's event envelope and the closed set of
// payload variants, one per event type.
package event

import (
	"encoding/json"
	"fmt"
	"iter"
	"time"
)

// Type identifies the kind of an event. The set is closed: replay rejects any
// value not listed in Types.
type Type string

// Person events.
const (
	TypePersonAdded      Type = "PersonAdded"
	TypePersonEdited     Type = "PersonEdited"
	TypePersonOffboarded Type = "PersonOffboarded"
	TypePersonDeleted    Type = "PersonDeleted"
	TypeTimeOffLogged    Type = "TimeOffLogged"
)

// Project events.
const (
	TypeProjectAdded   Type = "ProjectAdded"
	TypeProjectEdited  Type = "ProjectEdited"
	TypeProjectDeleted Type = "ProjectDeleted"
)

// Allocation events.
const (
	TypeAllocated   Type = "Allocated"
	TypeUnallocated Type = "Unallocated"
)

// Types lists every event type this build understands.
var Types = []Type{
	TypePersonAdded,
	TypePersonEdited,
	TypePersonOffboarded,
	TypePersonDeleted,
	TypeTimeOffLogged,
	TypeProjectAdded,
	TypeProjectEdited,
	TypeProjectDeleted,
	TypeAllocated,
	TypeUnallocated,
}

// Known reports whether t is one of Types.
func (t Type) Known() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Event is one immutable journal record.
type Event struct {
	// ID is the monotonic sequence number, assigned by the store on append (starts at 1).
	ID uint64 `json:"id"`
	// Type identifies the payload variant.
	Type Type `json:"type"`
	// Timestamp is when the event was recorded, assigned by the store on append.
	Timestamp time.Time `json:"timestamp"`
	// Payload holds the type-specific fields as JSON.
	Payload json.RawMessage `json:"payload"`
}

// New wraps a payload into an uncommitted event.
func New(p Payload) (Event, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}
	return Event{Type: p.EventType(), Payload: raw}, nil
}

// MustNew is New for payloads known to marshal. Intended for tests.
func MustNew(id uint64, at time.Time, p Payload) Event {
	e, err := New(p)
	if err != nil {
		panic(err)
	}
	e.ID = id
	e.Timestamp = at
	return e
}

// Sequence adapts a slice to the iterator shape the projection consumes.
func Sequence(events []Event) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for _, e := range events {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Decode returns the typed payload of an event.
func Decode(e Event) (Payload, error) {
	var p Payload
	switch e.Type {
	case TypePersonAdded:
		p = &PersonAdded{}
	case TypePersonEdited:
		p = &PersonEdited{}
	case TypePersonOffboarded:
		p = &PersonOffboarded{}
	case TypePersonDeleted:
		p = &PersonDeleted{}
	case TypeTimeOffLogged:
		p = &TimeOffLogged{}
	case TypeProjectAdded:
		p = &ProjectAdded{}
	case TypeProjectEdited:
		p = &ProjectEdited{}
	case TypeProjectDeleted:
		p = &ProjectDeleted{}
	case TypeAllocated:
		p = &Allocated{}
	case TypeUnallocated:
		p = &Unallocated{}
	default:
		return nil, &UnknownEventTypeError{Type: e.Type, EventID: e.ID}
	}
	if err := json.Unmarshal(e.Payload, p); err != nil {
		return nil, &MalformedPayloadError{Type: e.Type, EventID: e.ID, Err: err}
	}
	return p, nil
}
