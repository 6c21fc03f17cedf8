// Package runstore defines the contract for ephemeral run state storage.
//
// Stores hold full run records keyed by run reference, refresh the idle
// timestamp on every successful write, and evict idle runs after a TTL.
// Runs are intentionally lost on process restart; durability is a non-goal.
package runstore

import (
	"context"
	"errors"

	"github.com/gamefactory/gamefactory-go/game"
)

var (
	// ErrNotFound indicates the run is absent: expired, deleted, or never
	// created.
	ErrNotFound = errors.New("runstore: run not found")
	// ErrExists indicates a create collided with a live run reference.
	ErrExists = errors.New("runstore: run already exists")
	// ErrNoChange may be returned by a MutateFunc to abort persistence.
	// The store discards any changes, leaves the idle timestamp untouched,
	// and Mutate returns the unmodified state with a nil error.
	ErrNoChange = errors.New("runstore: no change")
)

// MutateFunc edits a run in place. It runs inside the store's per-key
// critical section, so the whole load-compute-store sequence is serialized
// against concurrent submissions and the TTL sweep.
type MutateFunc func(state *game.State) error

// Store is the run state store shared by the engine and the tool surface.
type Store interface {
	// Get returns a copy of the run, or ErrNotFound.
	Get(ctx context.Context, runRef string) (*game.State, error)

	// Has reports whether the run exists.
	Has(ctx context.Context, runRef string) (bool, error)

	// Create inserts a new run. ErrExists on reference collision.
	Create(ctx context.Context, state *game.State) error

	// Mutate applies fn to the run under the per-key lock. On success the
	// merged state is persisted with a refreshed LastTurnAt and returned.
	// If fn returns ErrNoChange the stored state is left untouched and
	// returned with a nil error; any other error aborts persistence and is
	// returned as-is.
	Mutate(ctx context.Context, runRef string, fn MutateFunc) (*game.State, error)

	// Delete removes the run. Deleting an absent run is not an error.
	Delete(ctx context.Context, runRef string) error

	// Count returns the number of live runs.
	Count(ctx context.Context) (int, error)

	// Close releases store resources, including any background sweeper.
	Close() error
}
