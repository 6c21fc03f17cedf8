// Package oracle is the deterministic random source for run resolution.
//
// Every helper derives a fresh generator from a composite string key of the
// form "seed:turn:context" and draws from it, so identical inputs produce
// identical outputs across calls and across process restarts. No helper
// carries generator state between calls and none may consult the wall clock
// or an unseeded source: replaying a run from its seed must reproduce every
// outcome exactly.
package oracle

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/gamefactory/gamefactory-go/game"
)

// ErrEmptySelection indicates a selection helper was asked to choose from
// zero items. This is a content-authoring bug upstream, not a player error.
var ErrEmptySelection = errors.New("oracle: cannot select from empty slice")

// RiskResult details a resolved risk check.
type RiskResult struct {
	Success bool
	// Roll is the raw sample in [0,99].
	Roll int
	// Threshold is the risk percentage after the difficulty modifier,
	// clamped to [0,100]. Success means Roll < Threshold.
	Threshold    int
	OriginalRisk int
	Modifier     int
}

// newRand derives a generator from a composite key. FNV-64a of the key seeds
// a math/rand source, which is stable across platforms and Go releases.
func newRand(key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func key(seed string, turn int, context string) string {
	return fmt.Sprintf("%s:%d:%s", seed, turn, context)
}

// Roll returns a deterministic sample in [0,99] for the given tuple.
func Roll(seed string, turn int, context string) int {
	return newRand(key(seed, turn, context)).Intn(100)
}

// ResolveRisk checks whether an action succeeds. The success threshold is
// the risk percentage shifted by the difficulty modifier and clamped to
// [0,100]; the roll is keyed by the action id.
func ResolveRisk(seed string, turn int, actionID string, riskPercent int, difficulty game.Difficulty) RiskResult {
	modifier := game.Modifier(difficulty).RiskReduction
	threshold := clamp(riskPercent+modifier, 0, 100)
	roll := Roll(seed, turn, actionID)

	return RiskResult{
		Success:      roll < threshold,
		Roll:         roll,
		Threshold:    threshold,
		OriginalRisk: riskPercent,
		Modifier:     modifier,
	}
}

// SelectFrom picks one item deterministically using a select-namespaced key.
func SelectFrom[T any](seed string, turn int, context string, items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrEmptySelection
	}
	roll := newRand(key(seed, turn, "select:"+context)).Intn(100)
	return items[roll%len(items)], nil
}

// Shuffle returns a deterministically permuted copy of items using a
// Fisher-Yates pass, drawing one fresh swap index per position.
func Shuffle[T any](seed string, turn int, context string, items []T) []T {
	out := append([]T(nil), items...)
	r := newRand(key(seed, turn, "shuffle:"+context))
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// InRange returns a deterministic uniform draw on [min,max] inclusive.
func InRange(seed string, turn int, context string, min, max int) int {
	if max <= min {
		return min
	}
	return newRand(key(seed, turn, "range:"+context)).Intn(max-min+1) + min
}

// ShouldOccur reports whether an event with the given percentage probability
// fires for this tuple.
func ShouldOccur(seed string, turn int, context string, probabilityPct int) bool {
	return Roll(seed, turn, context) < probabilityPct
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
