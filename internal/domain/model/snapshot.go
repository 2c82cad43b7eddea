package model

import (
	"maps"
	"slices"
	"strings"
)

// Order selects how entity rows are listed.
type Order int

const (
	// OrderInsertion lists entities in the order their creating events were journaled.
	OrderInsertion Order = iota
	// OrderAlphabetical lists entities by name, then id.
	OrderAlphabetical
)

// Snapshot is the current state derived from the journal. It owns nothing:
// it can always be thrown away and rebuilt.
type Snapshot struct {
	People      map[string]Person
	Projects    map[string]Project
	Allocations map[string]Allocation

	// Insertion order of ids, including deleted entities.
	PersonOrder     []string
	ProjectOrder    []string
	AllocationOrder []string

	// LastEventID is the id of the last applied event; EventCount the number applied.
	LastEventID uint64
	EventCount  int
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		People:      map[string]Person{},
		Projects:    map[string]Project{},
		Allocations: map[string]Allocation{},
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		People:          make(map[string]Person, len(s.People)),
		Projects:        make(map[string]Project, len(s.Projects)),
		Allocations:     make(map[string]Allocation, len(s.Allocations)),
		PersonOrder:     slices.Clone(s.PersonOrder),
		ProjectOrder:    slices.Clone(s.ProjectOrder),
		AllocationOrder: slices.Clone(s.AllocationOrder),
		LastEventID:     s.LastEventID,
		EventCount:      s.EventCount,
	}
	for id, p := range s.People {
		out.People[id] = p.Clone()
	}
	for id, p := range s.Projects {
		out.Projects[id] = p.Clone()
	}
	for id, a := range s.Allocations {
		out.Allocations[id] = a.Clone()
	}
	return out
}

// Person returns a live person.
func (s *Snapshot) Person(id string) (Person, bool) {
	p, ok := s.People[id]
	if !ok || !p.Live() {
		return Person{}, false
	}
	return p, true
}

// Project returns a live project.
func (s *Snapshot) Project(id string) (Project, bool) {
	p, ok := s.Projects[id]
	if !ok || !p.Live() {
		return Project{}, false
	}
	return p, true
}

// LivePeople returns non-deleted people in the requested order.
func (s *Snapshot) LivePeople(order Order) []Person {
	out := make([]Person, 0, len(s.PersonOrder))
	for _, id := range s.PersonOrder {
		if p, ok := s.Person(id); ok {
			out = append(out, p)
		}
	}
	if order == OrderAlphabetical {
		slices.SortStableFunc(out, func(a, b Person) int {
			return compareNames(a.Name, a.ID, b.Name, b.ID)
		})
	}
	return out
}

// LiveProjects returns non-deleted projects in the requested order.
func (s *Snapshot) LiveProjects(order Order) []Project {
	out := make([]Project, 0, len(s.ProjectOrder))
	for _, id := range s.ProjectOrder {
		if p, ok := s.Project(id); ok {
			out = append(out, p)
		}
	}
	if order == OrderAlphabetical {
		slices.SortStableFunc(out, func(a, b Project) int {
			return compareNames(a.Name, a.ID, b.Name, b.ID)
		})
	}
	return out
}

// Current reports whether a was booked against the present incarnations of its
// person and project. Allocations made before a deleted id was added again
// belong to the old entity and never count.
func (s *Snapshot) Current(a Allocation) bool {
	return a.Event >= s.People[a.PersonID].AddedEvent && a.Event >= s.Projects[a.ProjectID].AddedEvent
}

// Allocation returns a current allocation, withdrawn or not.
func (s *Snapshot) Allocation(id string) (Allocation, bool) {
	a, ok := s.Allocations[id]
	if !ok || !s.Current(a) {
		return Allocation{}, false
	}
	return a, true
}

// AllocationsFor returns the current allocations of a person in insertion
// order, withdrawn ones included.
func (s *Snapshot) AllocationsFor(personID string) []Allocation {
	var out []Allocation
	for _, id := range s.AllocationOrder {
		if a := s.Allocations[id]; a.PersonID == personID && s.Current(a) {
			out = append(out, a)
		}
	}
	return out
}

// AllocationsOn returns the current allocations booked on a project in insertion order.
func (s *Snapshot) AllocationsOn(projectID string) []Allocation {
	var out []Allocation
	for _, id := range s.AllocationOrder {
		if a := s.Allocations[id]; a.ProjectID == projectID && s.Current(a) {
			out = append(out, a)
		}
	}
	return out
}

// TakenShortCodes returns the upper-cased short codes of all people (deleted included).
func (s *Snapshot) TakenShortCodes() map[string]bool {
	taken := make(map[string]bool, len(s.People))
	for _, p := range s.People {
		if p.ShortCode != "" {
			taken[strings.ToUpper(p.ShortCode)] = true
		}
	}
	return taken
}

// TakenProjectIDs returns every project id ever used, deleted included.
func (s *Snapshot) TakenProjectIDs() map[string]bool {
	taken := make(map[string]bool, len(s.Projects))
	for id := range maps.Keys(s.Projects) {
		taken[id] = true
	}
	return taken
}

// TakenProjectShortCodes returns the upper-cased short codes of all projects.
func (s *Snapshot) TakenProjectShortCodes() map[string]bool {
	taken := make(map[string]bool, len(s.Projects))
	for _, p := range s.Projects {
		if p.ShortCode != "" {
			taken[strings.ToUpper(p.ShortCode)] = true
		}
	}
	return taken
}

func compareNames(an, aid, bn, bid string) int {
	if c := strings.Compare(strings.ToLower(an), strings.ToLower(bn)); c != 0 {
		return c
	}
	return strings.Compare(aid, bid)
}
