package projection

import (
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

// allocate records an allocation. Capacity is not checked here: over-allocation
// is reported by the availability calculator, never rejected.
func allocate(s *model.Snapshot, id uint64, p *event.Allocated) error {
	if _, exists := s.Allocations[p.AllocationID]; exists {
		return &model.DuplicateIDError{Kind: model.KindAllocation, ID: p.AllocationID}
	}
	if _, ok := s.Person(p.PersonID); !ok {
		return &model.UnknownEntityError{Kind: model.KindPerson, ID: p.PersonID}
	}
	if _, ok := s.Project(p.ProjectID); !ok {
		return &model.UnknownEntityError{Kind: model.KindProject, ID: p.ProjectID}
	}
	s.Allocations[p.AllocationID] = model.Allocation{
		ID:           p.AllocationID,
		PersonID:     p.PersonID,
		ProjectID:    p.ProjectID,
		Start:        p.StartDate,
		End:          p.EndDate,
		HoursPerWeek: p.HoursPerWeek,
		Lead:         p.Lead,
		Event:        id,
	}
	s.AllocationOrder = append(s.AllocationOrder, p.AllocationID)
	return nil
}

// unallocate withdraws an allocation from a date onwards. Repeated withdrawals
// keep the earliest date.
func unallocate(s *model.Snapshot, p *event.Unallocated) error {
	a, ok := s.Allocation(p.AllocationID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindAllocation, ID: p.AllocationID}
	}
	on := p.WithdrawnOn
	if a.WithdrawnOn == nil || on < *a.WithdrawnOn {
		a.WithdrawnOn = &on
	}
	s.Allocations[p.AllocationID] = a
	return nil
}
