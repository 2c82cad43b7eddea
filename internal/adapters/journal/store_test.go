package journal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rostr/internal/adapters/journal"
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
}

func mustEvent(p event.Payload) event.Event {
	e, err := event.New(p)
	if err != nil {
		panic(err)
	}
	return e
}

func openStore(dir string) *journal.Store {
	store, err := journal.Open(filepath.Join(dir, "journal.jsonl"), journal.WithClock(fixedClock))
	if err != nil {
		panic(err)
	}
	return store
}

func TestAppendAndIterate(t *testing.T) {
	Convey("Given an empty journal", t, func() {
		ctx := context.Background()
		store := openStore(t.TempDir())

		Convey("When nothing has been written", func() {
			events, err := store.ReadAll(ctx)
			fp, fpErr := store.Fingerprint()

			Convey("Then iteration yields nothing", func() {
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
				So(fpErr, ShouldBeNil)
				So(fp.Empty(), ShouldBeTrue)
			})
		})

		Convey("When two events are appended", func() {
			first, err := store.Append(ctx, mustEvent(event.PersonAdded{PersonID: "ada", Name: "Ada", WeeklyCapacityHours: 40}))
			So(err, ShouldBeNil)
			second, err := store.Append(ctx, mustEvent(event.ProjectAdded{ProjectID: "apollo", Name: "Apollo", Status: model.ProjectActive}))
			So(err, ShouldBeNil)

			Convey("Then ids are sequential and timestamps come from the clock", func() {
				So(first.ID, ShouldEqual, 1)
				So(second.ID, ShouldEqual, 2)
				So(first.Timestamp, ShouldEqual, fixedClock())
			})

			Convey("Then iteration returns them in append order", func() {
				events, err := store.ReadAll(ctx)
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].Type, ShouldEqual, event.TypePersonAdded)
				So(events[1].ID, ShouldEqual, 2)

				payload, err := event.Decode(events[0])
				So(err, ShouldBeNil)
				So(payload.(*event.PersonAdded).Name, ShouldEqual, "Ada")
			})

			Convey("Then each record is one newline-terminated line", func() {
				data, err := os.ReadFile(store.Path())
				So(err, ShouldBeNil)
				So(data[len(data)-1], ShouldEqual, byte('\n'))
				fp, err := store.Fingerprint()
				So(err, ShouldBeNil)
				So(fp.Records, ShouldEqual, 2)
				So(fp.Size, ShouldEqual, int64(len(data)))
			})

			Convey("Then iteration can be restarted", func() {
				a, _ := store.ReadAll(ctx)
				b, _ := store.ReadAll(ctx)
				So(a, ShouldResemble, b)
			})
		})

		Convey("When the context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := store.Append(cancelled, mustEvent(event.PersonDeleted{PersonID: "ada"}))

			Convey("Then nothing is written", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				_, statErr := os.Stat(store.Path())
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given a journal with one event", t, func() {
		ctx := context.Background()
		store := openStore(t.TempDir())
		_, err := store.Append(ctx, mustEvent(event.PersonAdded{PersonID: "ada", Name: "Ada"}))
		So(err, ShouldBeNil)

		before, err := store.Fingerprint()
		So(err, ShouldBeNil)

		Convey("Then the fingerprint is stable while nothing changes", func() {
			again, err := store.Fingerprint()
			So(err, ShouldBeNil)
			So(again, ShouldResemble, before)
		})

		Convey("Then an append changes it", func() {
			_, err := store.Append(ctx, mustEvent(event.PersonDeleted{PersonID: "ada"}))
			So(err, ShouldBeNil)
			after, err := store.Fingerprint()
			So(err, ShouldBeNil)
			So(after.Hash, ShouldNotEqual, before.Hash)
			So(after.Records, ShouldEqual, 2)
		})
	})
}

func TestCorruption(t *testing.T) {
	Convey("Given a journal with two events", t, func() {
		ctx := context.Background()
		store := openStore(t.TempDir())
		_, err := store.Append(ctx, mustEvent(event.PersonAdded{PersonID: "ada", Name: "Ada"}))
		So(err, ShouldBeNil)
		_, err = store.Append(ctx, mustEvent(event.PersonAdded{PersonID: "bob", Name: "Bob"}))
		So(err, ShouldBeNil)

		data, err := os.ReadFile(store.Path())
		So(err, ShouldBeNil)

		Convey("When the last line is truncated mid-record", func() {
			So(os.WriteFile(store.Path(), data[:len(data)-10], 0o644), ShouldBeNil)

			Convey("Then iteration fails on line 2", func() {
				_, err := store.ReadAll(ctx)
				var corrupt *journal.CorruptJournalError
				So(errors.As(err, &corrupt), ShouldBeTrue)
				So(corrupt.Line, ShouldEqual, 2)
				So(errors.Is(err, journal.ErrTornRecord), ShouldBeTrue)
			})

			Convey("Then appends are refused and the file is untouched", func() {
				_, err := store.Append(ctx, mustEvent(event.PersonDeleted{PersonID: "ada"}))
				So(errors.Is(err, journal.ErrCorrupt), ShouldBeTrue)

				now, readErr := os.ReadFile(store.Path())
				So(readErr, ShouldBeNil)
				So(len(now), ShouldEqual, len(data)-10)
			})

			Convey("Then the fingerprint reports the torn tail", func() {
				fp, err := store.Fingerprint()
				So(err, ShouldBeNil)
				So(fp.Torn, ShouldBeTrue)
				So(fp.Records, ShouldEqual, 1)
			})
		})

		Convey("When a line is not JSON", func() {
			So(os.WriteFile(store.Path(), append([]byte("garbage\n"), data...), 0o644), ShouldBeNil)

			Convey("Then iteration fails on line 1 at offset 0", func() {
				_, err := store.ReadAll(ctx)
				var corrupt *journal.CorruptJournalError
				So(errors.As(err, &corrupt), ShouldBeTrue)
				So(corrupt.Line, ShouldEqual, 1)
				So(corrupt.Offset, ShouldEqual, 0)
			})
		})

		Convey("When a blank line is inserted", func() {
			So(os.WriteFile(store.Path(), append(append([]byte{}, data...), '\n'), 0o644), ShouldBeNil)

			Convey("Then it is reported as corruption", func() {
				_, err := store.ReadAll(ctx)
				So(errors.Is(err, journal.ErrBlankRecord), ShouldBeTrue)
			})
		})

		Convey("When records are out of sequence", func() {
			lines := splitLines(data)
			So(os.WriteFile(store.Path(), append(append([]byte{}, lines[1]...), lines[0]...), 0o644), ShouldBeNil)

			Convey("Then the id mismatch is reported", func() {
				_, err := store.ReadAll(ctx)
				So(errors.Is(err, journal.ErrSequenceGap), ShouldBeTrue)
			})
		})
	})
}

func TestWriteFailure(t *testing.T) {
	Convey("Given a journal whose directory cannot be created", t, func() {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "not-a-dir")
		So(os.WriteFile(blocker, []byte("x"), 0o644), ShouldBeNil)

		store, err := journal.Open(filepath.Join(blocker, "journal.jsonl"))
		So(err, ShouldBeNil)

		Convey("When appending", func() {
			_, err := store.Append(context.Background(), mustEvent(event.PersonDeleted{PersonID: "ada"}))

			Convey("Then a write failure is returned", func() {
				var wf *journal.WriteFailure
				So(errors.As(err, &wf), ShouldBeTrue)
				So(errors.Is(err, journal.ErrWriteFailure), ShouldBeTrue)
			})
		})
	})
}

func TestLock(t *testing.T) {
	Convey("Given a locked journal", t, func() {
		dir := t.TempDir()
		first := openStore(dir)
		second := openStore(dir)

		unlock, err := first.Lock(context.Background())
		So(err, ShouldBeNil)

		Convey("When another store tries to lock it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
			defer cancel()
			_, err := second.Lock(ctx)

			Convey("Then it times out", func() {
				So(errors.Is(err, journal.ErrLockTimeout), ShouldBeTrue)
			})
		})

		Convey("When the lock is released", func() {
			So(unlock(), ShouldBeNil)
			again, err := second.Lock(context.Background())

			Convey("Then another store can take it", func() {
				So(err, ShouldBeNil)
				So(again(), ShouldBeNil)
			})
		})

		Reset(func() {
			_ = unlock()
		})
	})
}

func splitLines(data []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			out = append(out, data[start:i+1])
			start = i + 1
		}
	}
	return out
}
