// Package redisstore provides a Redis-backed run store for multi-instance
// deployments.
//
// Run records are stored as JSON values with a key TTL, so idle eviction is
// delegated to Redis expiry instead of an in-process sweep. Mutations are
// serialized per key by an in-process lock; deployments running multiple
// writers must route a given run to one instance (sticky sessions), which is
// the same single-writer-per-run discipline the engine already assumes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/runstore"
)

// Config configures the store.
type Config struct {
	// Client is the Redis client instance. Required.
	Client *redis.Client

	// KeyPrefix namespaces all run keys. Default "gf:run:".
	KeyPrefix string

	// TTL is the idle eviction window. Default game.RunTTL.
	TTL time.Duration
}

// Store implements runstore.Store on Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	// locks holds one mutex per active run. Entries are dropped when the
	// run is deleted; abandoned runs leak a mutex until process restart,
	// bounded by the same population the TTL already bounds.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a Redis-backed store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "gf:run:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = game.RunTTL
	}
	return &Store{
		client: cfg.Client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) key(runRef string) string {
	return s.prefix + runRef
}

func (s *Store) lock(runRef string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[runRef]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[runRef] = mu
	}
	return mu
}

func (s *Store) dropLock(runRef string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.locks, runRef)
}

// Get implements runstore.Store.
func (s *Store) Get(ctx context.Context, runRef string) (*game.State, error) {
	return s.load(ctx, runRef)
}

func (s *Store) load(ctx context.Context, runRef string) (*game.State, error) {
	raw, err := s.client.Get(ctx, s.key(runRef)).Bytes()
	if err == redis.Nil {
		return nil, runstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", runRef, err)
	}

	var state game.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal %s: %w", runRef, err)
	}
	return &state, nil
}

func (s *Store) save(ctx context.Context, state *game.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redisstore: marshal %s: %w", state.RunRef, err)
	}
	if err := s.client.Set(ctx, s.key(state.RunRef), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", state.RunRef, err)
	}
	return nil
}

// Has implements runstore.Store.
func (s *Store) Has(ctx context.Context, runRef string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(runRef)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: exists %s: %w", runRef, err)
	}
	return n > 0, nil
}

// Create implements runstore.Store.
func (s *Store) Create(ctx context.Context, state *game.State) error {
	stored := state.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.LastTurnAt = now

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("redisstore: marshal %s: %w", state.RunRef, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(state.RunRef), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redisstore: setnx %s: %w", state.RunRef, err)
	}
	if !ok {
		return runstore.ErrExists
	}
	return nil
}

// Mutate implements runstore.Store. Writing back with the full TTL doubles
// as the LastTurnAt refresh: the Redis expiry restarts on every write.
func (s *Store) Mutate(ctx context.Context, runRef string, fn runstore.MutateFunc) (*game.State, error) {
	mu := s.lock(runRef)
	mu.Lock()
	defer mu.Unlock()

	state, err := s.load(ctx, runRef)
	if err != nil {
		return nil, err
	}

	scratch := state.Clone()
	if err := fn(scratch); err != nil {
		if errors.Is(err, runstore.ErrNoChange) {
			return state, nil
		}
		return nil, err
	}

	scratch.LastTurnAt = time.Now()
	if err := s.save(ctx, scratch); err != nil {
		return nil, err
	}
	return scratch, nil
}

// Delete implements runstore.Store.
func (s *Store) Delete(ctx context.Context, runRef string) error {
	if err := s.client.Del(ctx, s.key(runRef)).Err(); err != nil {
		return fmt.Errorf("redisstore: del %s: %w", runRef, err)
	}
	s.dropLock(runRef)
	return nil
}

// Count implements runstore.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("redisstore: scan: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Close implements runstore.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
