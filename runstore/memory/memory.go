// Package memory provides the in-memory run store used by single-instance
// deployments and tests.
//
// A background sweep evicts runs whose idle time exceeds the TTL. The sweep
// has an explicit Start/Stop lifecycle and an injectable clock so tests can
// drive eviction deterministically instead of waiting on real timers.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/runstore"
)

// Store implements runstore.Store with a mutex-guarded map.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*entry

	ttl        time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	log        *slog.Logger

	lifecycleMu sync.Mutex
	stop        chan struct{}
	done        chan struct{}
}

// entry serializes all access to one run. The sweep takes the same lock
// before evicting, so a delete can never race an in-flight mutate.
type entry struct {
	mu      sync.Mutex
	state   *game.State
	deleted bool
}

// Option configures the store.
type Option func(*Store)

// WithTTL overrides the idle TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithSweepInterval overrides how often the background sweep runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) { s.sweepEvery = interval }
}

// WithClock injects the time source used for idle measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by the sweep.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a store. The sweep does not run until Start is called.
func New(opts ...Option) *Store {
	s := &Store{
		runs:       make(map[string]*entry),
		ttl:        game.RunTTL,
		sweepEvery: game.SweepInterval,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background sweep. Calling Start twice is a no-op.
func (s *Store) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Store) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// Stop halts the background sweep and waits for it to exit.
func (s *Store) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
}

// Close implements runstore.Store.
func (s *Store) Close() error {
	s.Stop()
	return nil
}

// Get implements runstore.Store.
func (s *Store) Get(ctx context.Context, runRef string) (*game.State, error) {
	e, ok := s.entry(runRef)
	if !ok {
		return nil, runstore.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, runstore.ErrNotFound
	}
	return e.state.Clone(), nil
}

// Has implements runstore.Store.
func (s *Store) Has(ctx context.Context, runRef string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.runs[runRef]
	return ok, nil
}

// Create implements runstore.Store.
func (s *Store) Create(ctx context.Context, state *game.State) error {
	stored := state.Clone()
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.LastTurnAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[state.RunRef]; ok {
		return runstore.ErrExists
	}
	s.runs[state.RunRef] = &entry{state: stored}
	return nil
}

// Mutate implements runstore.Store. fn runs against a scratch copy; the copy
// only replaces the stored state when fn succeeds, so a failed validation
// can never leave a partial write behind.
func (s *Store) Mutate(ctx context.Context, runRef string, fn runstore.MutateFunc) (*game.State, error) {
	e, ok := s.entry(runRef)
	if !ok {
		return nil, runstore.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, runstore.ErrNotFound
	}

	scratch := e.state.Clone()
	if err := fn(scratch); err != nil {
		if errors.Is(err, runstore.ErrNoChange) {
			return e.state.Clone(), nil
		}
		return nil, err
	}

	scratch.LastTurnAt = s.now()
	e.state = scratch
	return scratch.Clone(), nil
}

// Delete implements runstore.Store.
func (s *Store) Delete(ctx context.Context, runRef string) error {
	s.mu.Lock()
	e, ok := s.runs[runRef]
	if ok {
		delete(s.runs, runRef)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// Count implements runstore.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs), nil
}

func (s *Store) entry(runRef string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[runRef]
	return e, ok
}

// sweep evicts runs idle past the TTL. It never surfaces errors: eviction is
// best-effort maintenance, not a caller dependency.
func (s *Store) sweep() {
	now := s.now()

	s.mu.RLock()
	refs := make([]string, 0, len(s.runs))
	for ref := range s.runs {
		refs = append(refs, ref)
	}
	s.mu.RUnlock()

	evicted := 0
	for _, ref := range refs {
		e, ok := s.entry(ref)
		if !ok {
			continue
		}
		e.mu.Lock()
		stale := !e.deleted && now.Sub(e.state.LastTurnAt) > s.ttl
		if stale {
			e.deleted = true
		}
		e.mu.Unlock()

		if stale {
			s.mu.Lock()
			delete(s.runs, ref)
			s.mu.Unlock()
			evicted++
		}
	}

	if evicted > 0 {
		s.mu.RLock()
		active := len(s.runs)
		s.mu.RUnlock()
		s.log.Info("runstore.sweep.ok", slog.Int("evicted", evicted), slog.Int("active", active))
	}
}
