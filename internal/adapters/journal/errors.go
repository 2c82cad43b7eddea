package journal

import (
	"errors"
	"fmt"
)

// Sentinel kinds for journal errors.
var (
	ErrWriteFailure = errors.New("journal write failed")
	ErrCorrupt      = errors.New("journal is corrupt")
	ErrLockTimeout  = errors.New("timed out waiting for the journal lock")

	ErrTornRecord   = errors.New("record is not newline terminated")
	ErrBlankRecord  = errors.New("blank record")
	ErrSequenceGap  = errors.New("event id does not match its position")
	ErrMissingField = errors.New("record misses a required field")
)

// WriteFailure means the event was not durably recorded. The journal is left
// as it was before the append.
type WriteFailure struct {
	Op  string
	Err error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("journal %s: %v", e.Op, e.Err)
}

func (e *WriteFailure) Unwrap() []error { return []error{ErrWriteFailure, e.Err} }

// CorruptJournalError reports an unreadable record. Line is 1-based and Offset
// is the byte position where the record starts.
type CorruptJournalError struct {
	Path   string
	Line   int
	Offset int64
	Err    error
}

func (e *CorruptJournalError) Error() string {
	return fmt.Sprintf("%s: line %d (offset %d): %v", e.Path, e.Line, e.Offset, e.Err)
}

func (e *CorruptJournalError) Unwrap() []error { return []error{ErrCorrupt, e.Err} }
