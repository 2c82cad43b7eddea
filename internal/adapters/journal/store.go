// Package journal stores events in an append-only JSON Lines file, one event
// per line. The file is the only authoritative state of the system.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/pkg/metrics"
)

const (
	defaultLockRetry = 50 * time.Millisecond
	defaultFileMode  = 0o644
	lockSuffix       = ".lock"
)

// Store is a file-backed event journal. It assumes a single writer; Lock
// guards against a second process writing at the same time.
type Store struct {
	path      string
	now       func() time.Time
	lockRetry time.Duration
	mode      os.FileMode
}

// Open returns a store for the journal at path. The file is created on the
// first append; a missing file reads as an empty journal.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrWriteFailure)
	}
	s := &Store{
		path:      filepath.Clean(path),
		now:       time.Now,
		lockRetry: defaultLockRetry,
		mode:      defaultFileMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the journal file path.
func (s *Store) Path() string { return s.path }

// Lock takes the advisory lock for the duration of one command. The returned
// function releases it and must be called on every exit path.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, &WriteFailure{Op: "lock", Err: err}
	}
	fl := flock.New(s.path + lockSuffix)
	ok, err := fl.TryLockContext(ctx, s.lockRetry)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fl.Path())
	}
	if err != nil {
		return nil, &WriteFailure{Op: "lock", Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, fl.Path())
	}
	return fl.Unlock, nil
}

// Append commits e with the next sequence id and the current time. The record
// is written whole and fsynced before Append returns; on any failure the file
// is truncated back to its previous length and a *WriteFailure is returned.
// A journal whose last record is torn is never appended to.
func (s *Store) Append(ctx context.Context, e event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	started := time.Now()
	committed, err := s.append(e)
	if err != nil {
		metrics.RecordJournalAppendError()
		return event.Event{}, err
	}
	metrics.RecordJournalAppend()
	metrics.RecordJournalAppendLatency(float64(time.Since(started).Microseconds()) / 1000)
	return committed, nil
}

func (s *Store) append(e event.Event) (event.Event, error) {
	fp, err := s.scan()
	if err != nil {
		return event.Event{}, &WriteFailure{Op: "scan", Err: err}
	}
	if fp.Torn {
		return event.Event{}, &CorruptJournalError{
			Path: s.path, Line: fp.Records + 1, Offset: fp.tornOffset, Err: ErrTornRecord,
		}
	}
	if !e.Type.Known() {
		return event.Event{}, &event.UnknownEventTypeError{Type: e.Type}
	}

	e.ID = uint64(fp.Records) + 1
	e.Timestamp = s.now().UTC()
	line, err := json.Marshal(e)
	if err != nil {
		return event.Event{}, &WriteFailure{Op: "encode", Err: err}
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return event.Event{}, &WriteFailure{Op: "mkdir", Err: err}
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, s.mode)
	if err != nil {
		return event.Event{}, &WriteFailure{Op: "open", Err: err}
	}

	if _, err := f.Write(line); err != nil {
		return event.Event{}, s.rollback(f, fp.Size, "write", err)
	}
	if err := f.Sync(); err != nil {
		return event.Event{}, s.rollback(f, fp.Size, "sync", err)
	}
	if err := f.Close(); err != nil {
		return event.Event{}, &WriteFailure{Op: "close", Err: err}
	}
	if fp.Size == 0 {
		if err := fsyncDir(filepath.Dir(s.path)); err != nil {
			return event.Event{}, &WriteFailure{Op: "sync dir", Err: err}
		}
	}
	return e, nil
}

// rollback drops a partially written record so no reader ever sees it.
func (s *Store) rollback(f *os.File, size int64, op string, cause error) error {
	truncErr := f.Truncate(size)
	_ = f.Sync()
	_ = f.Close()
	return &WriteFailure{Op: op, Err: errors.Join(cause, truncErr)}
}

// Events iterates the journal in append order. The sequence is bounded by the
// file size when iteration starts, so a concurrent append is not observed.
// Every call reopens the file. Iteration stops at the first error, which is a
// *CorruptJournalError for unreadable records.
func (s *Store) Events(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		f, err := os.Open(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			yield(event.Event{}, fmt.Errorf("open journal: %w", err))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			yield(event.Event{}, fmt.Errorf("stat journal: %w", err))
			return
		}

		r := bufio.NewReader(io.LimitReader(f, info.Size()))
		var offset int64
		for line := 1; ; line++ {
			if err := ctx.Err(); err != nil {
				yield(event.Event{}, err)
				return
			}
			raw, readErr := r.ReadBytes('\n')
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				yield(event.Event{}, fmt.Errorf("read journal: %w", readErr))
				return
			}
			if len(raw) == 0 {
				return
			}
			if readErr != nil {
				yield(event.Event{}, s.corrupt(line, offset, ErrTornRecord))
				return
			}

			e, err := decodeRecord(raw, line)
			if err != nil {
				yield(event.Event{}, s.corrupt(line, offset, err))
				return
			}
			if !yield(e, nil) {
				return
			}
			offset += int64(len(raw))
		}
	}
}

// ReadAll collects every event. Intended for small journals and tests.
func (s *Store) ReadAll(ctx context.Context) ([]event.Event, error) {
	var out []event.Event
	for e, err := range s.Events(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) corrupt(line int, offset int64, err error) error {
	metrics.RecordJournalCorruptRead()
	return &CorruptJournalError{Path: s.path, Line: line, Offset: offset, Err: err}
}

func decodeRecord(raw []byte, line int) (event.Event, error) {
	body := bytes.TrimSuffix(raw, []byte{'\n'})
	if len(bytes.TrimSpace(body)) == 0 {
		return event.Event{}, ErrBlankRecord
	}
	var e event.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return event.Event{}, err
	}
	switch {
	case e.Type == "":
		return event.Event{}, fmt.Errorf("%w: type", ErrMissingField)
	case len(e.Payload) == 0:
		return event.Event{}, fmt.Errorf("%w: payload", ErrMissingField)
	case e.Timestamp.IsZero():
		return event.Event{}, fmt.Errorf("%w: timestamp", ErrMissingField)
	case e.ID != uint64(line):
		return event.Event{}, fmt.Errorf("%w: id %d", ErrSequenceGap, e.ID)
	}
	return e, nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
