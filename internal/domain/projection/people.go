package projection

import (
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

// addPerson creates a person, or a new incarnation of a deleted one. Nothing
// recorded against the deleted incarnation carries over.
func addPerson(s *model.Snapshot, id uint64, p *event.PersonAdded) error {
	existing, seen := s.People[p.PersonID]
	if seen && existing.Live() {
		return &model.DuplicateIDError{Kind: model.KindPerson, ID: p.PersonID}
	}
	s.People[p.PersonID] = model.Person{
		ID:                  p.PersonID,
		Name:                p.Name,
		Email:               p.Email,
		ShortCode:           p.ShortCode,
		Designation:         p.Designation,
		WeeklyCapacityHours: p.WeeklyCapacityHours,
		Skills:              model.NormalizeSkills(p.Skills),
		ExperienceYears:     p.ExperienceYears,
		ExperienceAsOf:      copyDate(p.ExperienceAsOf),
		Status:              model.PersonActive,
		AddedEvent:          id,
	}
	// A re-added person keeps their original position.
	if !seen {
		s.PersonOrder = append(s.PersonOrder, p.PersonID)
	}
	return nil
}

func editPerson(s *model.Snapshot, p *event.PersonEdited) error {
	person, ok := s.Person(p.PersonID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindPerson, ID: p.PersonID}
	}
	s.People[p.PersonID] = mergePerson(person, p)
	return nil
}

// mergePerson copies the fields present in the edit onto the person.
func mergePerson(person model.Person, p *event.PersonEdited) model.Person {
	if p.Name != nil {
		person.Name = *p.Name
	}
	if p.Email != nil {
		person.Email = *p.Email
	}
	if p.Designation != nil {
		person.Designation = *p.Designation
	}
	if p.WeeklyCapacityHours != nil {
		person.WeeklyCapacityHours = *p.WeeklyCapacityHours
	}
	if p.Skills != nil {
		person.Skills = model.NormalizeSkills(*p.Skills)
	}
	if p.ExperienceYears != nil {
		person.ExperienceYears = *p.ExperienceYears
	}
	if p.ExperienceAsOf != nil {
		person.ExperienceAsOf = copyDate(p.ExperienceAsOf)
	}
	return person
}

func offboardPerson(s *model.Snapshot, p *event.PersonOffboarded) error {
	person, ok := s.Person(p.PersonID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindPerson, ID: p.PersonID}
	}
	lwd := p.LastWorkingDay
	person.LastWorkingDay = &lwd
	person.Status = model.PersonOffboarded
	s.People[p.PersonID] = person
	return nil
}

func deletePerson(s *model.Snapshot, p *event.PersonDeleted) error {
	person, ok := s.Person(p.PersonID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindPerson, ID: p.PersonID}
	}
	person.Status = model.PersonDeleted
	s.People[p.PersonID] = person
	return nil
}

func logTimeOff(s *model.Snapshot, p *event.TimeOffLogged) error {
	person, ok := s.Person(p.PersonID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindPerson, ID: p.PersonID}
	}
	for _, t := range person.TimeOff {
		if t.ID == p.TimeOffID {
			return &model.DuplicateIDError{Kind: model.KindTimeOff, ID: p.TimeOffID}
		}
	}
	// Overlaps with existing entries are legal; consumers take the union.
	person.TimeOff = append(person.TimeOff, model.TimeOff{
		ID:       p.TimeOffID,
		PersonID: p.PersonID,
		Start:    p.StartDate,
		End:      p.EndDate,
		Reason:   p.Reason,
	})
	s.People[p.PersonID] = person
	return nil
}

func copyDate(d *model.Date) *model.Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
