package engine

import "github.com/gamefactory/gamefactory-go/game"

// ActionResult is the outcome of one submitted action. Exactly one of the
// variant types below is returned per call; errors are reported separately.
type ActionResult interface {
	actionResult()
}

// Success means the action fully or partially resolved and the run advanced
// to a new scene.
type Success struct {
	State     *game.State
	Narrative string
}

// PendingConsequence means a risk check failed. The run now accepts only
// the listed consequence ids and the turn counter has not moved.
type PendingConsequence struct {
	State            *game.State
	Consequences     []game.Consequence
	FailureNarrative string
}

// RunEnded means the run is concluded, either by this action or earlier.
type RunEnded struct {
	State     *game.State
	Reason    game.EndReason
	Narrative string
	Rating    game.Rating
}

// OutOfSync is the idempotent-retry signal: the claimed turn does not match
// the stored one, so the action was answered without applying any effects.
type OutOfSync struct {
	State       *game.State
	CurrentTurn int
}

func (*Success) actionResult()            {}
func (*PendingConsequence) actionResult() {}
func (*RunEnded) actionResult()           {}
func (*OutOfSync) actionResult()          {}
