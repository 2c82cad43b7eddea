package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the domain model. These allow errors.Is/As from callers.
var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidStatus   = errors.New("invalid status")
)

// Entity kinds used in error reporting.
const (
	KindPerson     = "person"
	KindProject    = "project"
	KindAllocation = "allocation"
	KindTimeOff    = "time-off"
)

// UnknownEntityError reports a reference to an id that is absent or deleted.
type UnknownEntityError struct {
	Kind string
	ID   string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
}

func (e *UnknownEntityError) Unwrap() error { return ErrUnknownEntity }

// DuplicateIDError reports an insert whose id already exists in the live set.
type DuplicateIDError struct {
	Kind string
	ID   string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %q", e.Kind, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }
