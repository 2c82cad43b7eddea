package journal

import (
	"os"
	"time"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockRetryDelay sets how often a contended lock is retried.
func WithLockRetryDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockRetry = d
		}
	}
}

// WithFileMode sets the permissions of a newly created journal.
func WithFileMode(mode os.FileMode) Option {
	return func(s *Store) {
		if mode != 0 {
			s.mode = mode
		}
	}
}
