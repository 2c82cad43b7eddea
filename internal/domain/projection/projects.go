package projection

import (
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

func addProject(s *model.Snapshot, id uint64, p *event.ProjectAdded) error {
	existing, seen := s.Projects[p.ProjectID]
	if seen && existing.Live() {
		return &model.DuplicateIDError{Kind: model.KindProject, ID: p.ProjectID}
	}
	project := model.Project{
		ID:               p.ProjectID,
		Name:             p.Name,
		ShortCode:        p.ShortCode,
		Description:      p.Description,
		Status:           p.Status,
		WinProbability:   p.WinProbability,
		TotalHoursNeeded: copyFloat(p.TotalHoursNeeded),
		RequiredSkills:   model.NormalizeSkills(p.RequiredSkills),
		AddedEvent:       id,
	}
	s.Projects[p.ProjectID] = project
	if !seen {
		s.ProjectOrder = append(s.ProjectOrder, p.ProjectID)
	}
	return nil
}

func editProject(s *model.Snapshot, p *event.ProjectEdited) error {
	project, ok := s.Project(p.ProjectID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindProject, ID: p.ProjectID}
	}
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
	if p.WinProbability != nil {
		project.WinProbability = *p.WinProbability
	}
	if p.TotalHoursNeeded != nil {
		project.TotalHoursNeeded = copyFloat(p.TotalHoursNeeded)
	}
	if p.RequiredSkills != nil {
		project.RequiredSkills = model.NormalizeSkills(*p.RequiredSkills)
	}
	s.Projects[p.ProjectID] = project
	return nil
}

func deleteProject(s *model.Snapshot, p *event.ProjectDeleted) error {
	project, ok := s.Project(p.ProjectID)
	if !ok {
		return &model.UnknownEntityError{Kind: model.KindProject, ID: p.ProjectID}
	}
	project.Status = model.ProjectDeleted
	s.Projects[p.ProjectID] = project
	return nil
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
