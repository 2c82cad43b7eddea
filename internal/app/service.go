// Package service exposes the rostr command surface: mutating commands that
// append one event each, and read-only reports over the current snapshot.
package service

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/rostr/internal/adapters/journal"
	"github.com/okian/rostr/internal/adapters/snapshot"
	"github.com/okian/rostr/internal/config"
	"github.com/okian/rostr/internal/domain/availability"
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/forecast"
	"github.com/okian/rostr/internal/domain/model"
	"github.com/okian/rostr/internal/domain/projection"
	"github.com/okian/rostr/pkg/logger"
	"github.com/okian/rostr/pkg/metrics"
)

// Defaults are the values filled in when a command leaves them out.
type Defaults struct {
	WeeklyHours         float64
	PersonShortCodeLen  int
	ProjectShortCodeLen int
	AllocationDays      int
	ForecastMonths      int
}

// DefaultDefaults mirrors config.New.
func DefaultDefaults() Defaults {
	return Defaults{
		WeeklyHours:         model.DefaultWeeklyHours,
		PersonShortCodeLen:  4,
		ProjectShortCodeLen: 6,
		AllocationDays:      365,
		ForecastMonths:      3,
	}
}

// Service runs commands and reports against one journal.
type Service struct {
	mu sync.Mutex

	store *journal.Store
	cache *snapshot.Cache

	calc     *availability.Calculator
	engine   *forecast.Engine
	settings forecast.Settings
	conv     availability.Convention
	defaults Defaults

	validate    *validator.Validate
	now         func() time.Time
	lockTimeout time.Duration
	newID       func() string

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache keeps derived snapshot files in the given cache.
func WithCache(c *snapshot.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithConvention sets the working-day convention used for all hours.
func WithConvention(c availability.Convention) Option {
	return func(s *Service) {
		if c.DaysPerWeek() > 0 {
			s.conv = c
		}
	}
}

// WithSettings sets the report preferences.
func WithSettings(settings forecast.Settings) Option {
	return func(s *Service) {
		s.settings = settings
	}
}

// WithDefaults sets the values used for omitted command fields.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithClock sets the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockTimeout bounds the wait for the journal lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithIDGenerator replaces the generator of time-off and allocation ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithConfig applies a validated configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		if conv, err := cfg.Convention(); err == nil {
			s.conv = conv
		}
		if settings, err := cfg.Settings(); err == nil {
			s.settings = settings
		}
		s.defaults = Defaults{
			WeeklyHours:         cfg.DefaultWeeklyHours,
			PersonShortCodeLen:  cfg.PersonShortCodeLen,
			ProjectShortCodeLen: cfg.ProjectShortCodeLen,
			AllocationDays:      cfg.DefaultAllocationDays,
			ForecastMonths:      cfg.ForecastMonths,
		}
		s.lockTimeout = cfg.LockTimeout
	}
}

// New constructs a Service on top of a journal store.
func New(store *journal.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		settings:    forecast.DefaultSettings(),
		conv:        availability.DefaultConvention(),
		defaults:    DefaultDefaults(),
		now:         time.Now,
		lockTimeout: 5 * time.Second,
		newID:       shortID,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.calc = availability.NewCalculator(availability.WithConvention(s.conv))
	s.engine = forecast.NewEngine(s.calc, s.settings)
	s.validate = newValidator()
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their json names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Engine returns the report engine, mainly for band classification.
func (s *Service) Engine() *forecast.Engine { return s.engine }

// Today returns the current civil date.
func (s *Service) Today() model.Date { return model.DateOf(s.now()) }

// Snapshot returns the current state, from the cache when it matches the
// journal and by replaying the journal otherwise.
func (s *Service) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) (*model.Snapshot, error) {
	fp, err := s.store.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint journal: %w", err)
	}

	if s.cache != nil && !fp.Torn {
		snap, err := s.cache.Load(fp)
		if err == nil {
			metrics.RecordCacheHit()
			s.updateEntityCounts(snap)
			return snap, nil
		}
		metrics.RecordCacheMiss()
		s.logger.Debug(ctx, "snapshot cache not usable, rebuilding", logger.Error(err))
	}

	snap, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	s.saveCache(ctx, snap, fp)
	return snap, nil
}

// Rebuild replays the whole journal, ignoring and then refreshing the cache.
func (s *Service) Rebuild(ctx context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, err := s.store.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint journal: %w", err)
	}
	snap, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	s.saveCache(ctx, snap, fp)
	return snap, nil
}

func (s *Service) rebuild(ctx context.Context) (*model.Snapshot, error) {
	started := time.Now()
	snap, err := projection.Rebuild(ctx, s.store.Events(ctx))
	if err != nil {
		s.logger.Error(ctx, "journal replay failed", logger.String("journal", s.store.Path()), logger.Error(err))
		return nil, err
	}
	metrics.RecordEventsReplayed(snap.EventCount)
	metrics.RecordRebuild(time.Since(started))
	s.updateEntityCounts(snap)
	s.logger.Debug(ctx, "journal replayed",
		logger.Int("events", snap.EventCount),
		logger.Uint64("lastEventID", snap.LastEventID),
	)
	return snap, nil
}

// saveCache refreshes the derived files. The journal is already committed, so
// a failure here only costs a rebuild next time.
func (s *Service) saveCache(ctx context.Context, snap *model.Snapshot, fp journal.Fingerprint) {
	if s.cache == nil {
		return
	}
	written, err := s.cache.Save(snap, fp)
	if err != nil {
		metrics.RecordCacheWriteError()
		s.logger.Warn(ctx, "could not refresh snapshot cache", logger.String("dir", s.cache.Dir()), logger.Error(err))
		if invErr := s.cache.Invalidate(); invErr != nil {
			s.logger.Warn(ctx, "could not invalidate snapshot cache", logger.Error(invErr))
		}
		return
	}
	metrics.RecordCacheFilesRewritten(written)
}

func (s *Service) updateEntityCounts(snap *model.Snapshot) {
	live := 0
	for _, a := range snap.Allocations {
		if _, ok := snap.Person(a.PersonID); !ok {
			continue
		}
		if _, ok := snap.Project(a.ProjectID); ok {
			live++
		}
	}
	metrics.UpdateEntityCounts(len(snap.LivePeople(model.OrderInsertion)), len(snap.LiveProjects(model.OrderInsertion)), live)
}

// builder turns a command into an event payload against the current snapshot.
type builder func(*model.Snapshot) (event.Payload, error)

// commit runs one mutating command under the journal lock: load the snapshot,
// build and dry-run the event, append it, then apply it and refresh the cache.
// Nothing is appended unless the event applies cleanly.
func (s *Service) commit(ctx context.Context, command string, build builder) (event.Event, *model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, next, err := s.commitLocked(ctx, build)
	outcome := "applied"
	if err != nil {
		outcome = string(Classify(err))
		metrics.RecordErrorByClass(outcome)
		s.logger.Warn(ctx, "command not applied",
			logger.String("command", command),
			logger.String("class", outcome),
			logger.Error(err),
		)
	} else {
		s.logger.Info(ctx, "command applied",
			logger.String("command", command),
			logger.Uint64("eventID", e.ID),
			logger.String("type", string(e.Type)),
		)
	}
	metrics.RecordCommand(command, outcome)
	return e, next, err
}

func (s *Service) commitLocked(ctx context.Context, build builder) (event.Event, *model.Snapshot, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	unlock, err := s.store.Lock(lockCtx)
	if err != nil {
		return event.Event{}, nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn(ctx, "could not release journal lock", logger.Error(err))
		}
	}()

	snap, err := s.load(ctx)
	if err != nil {
		return event.Event{}, nil, err
	}
	payload, err := build(snap)
	if err != nil {
		return event.Event{}, nil, err
	}
	pending, err := event.New(payload)
	if err != nil {
		return event.Event{}, nil, err
	}
	if _, err := projection.Apply(snap, pending); err != nil {
		return event.Event{}, nil, &ValidationError{Reason: err.Error(), Err: err}
	}

	committed, err := s.store.Append(ctx, pending)
	if err != nil {
		return event.Event{}, nil, err
	}
	next, err := projection.Apply(snap, committed)
	if err != nil {
		// The event is durable; the next load replays it from the journal.
		return committed, nil, fmt.Errorf("apply committed event %d: %w", committed.ID, err)
	}

	fp, err := s.store.Fingerprint()
	if err != nil {
		s.logger.Warn(ctx, "could not fingerprint journal after append", logger.Error(err))
		return committed, next, nil
	}
	s.saveCache(ctx, next, fp)
	s.updateEntityCounts(next)
	return committed, next, nil
}

func (s *Service) check(cmd any) error {
	if err := s.validate.Struct(cmd); err != nil {
		return validationError(err)
	}
	return nil
}

// resolvePerson finds a live person by id or short code.
func resolvePerson(snap *model.Snapshot, field, ref string) (model.Person, error) {
	ref = strings.TrimSpace(ref)
	if p, ok := snap.Person(ref); ok {
		return p, nil
	}
	for _, p := range snap.LivePeople(model.OrderInsertion) {
		if p.ShortCode != "" && strings.EqualFold(p.ShortCode, ref) {
			return p, nil
		}
	}
	return model.Person{}, &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("no person %q", ref),
		Err:    &model.UnknownEntityError{Kind: model.KindPerson, ID: ref},
	}
}

// resolveProject finds a live project by id or short code.
func resolveProject(snap *model.Snapshot, field, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	if p, ok := snap.Project(ref); ok {
		return p, nil
	}
	for _, p := range snap.LiveProjects(model.OrderInsertion) {
		if p.ShortCode != "" && strings.EqualFold(p.ShortCode, ref) {
			return p, nil
		}
	}
	return model.Project{}, &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("no project %q", ref),
		Err:    &model.UnknownEntityError{Kind: model.KindProject, ID: ref},
	}
}

