// Package engine is the turn state machine: it creates runs, resolves
// submitted actions against the deterministic oracle, applies costs and
// consequences, and concludes runs with a rating. All state mutation
// happens inside the store's per-key critical section, so concurrent
// submissions against one run serialize and retries are answered
// idempotently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/oracle"
	"github.com/gamefactory/gamefactory-go/runstore"
	"github.com/gamefactory/gamefactory-go/safety"
	"github.com/gamefactory/gamefactory-go/scenario"
	"github.com/gamefactory/gamefactory-go/seedcodec"
)

var (
	// ErrRunNotFound means the run is absent: expired, ended and swept, or
	// never created.
	ErrRunNotFound = errors.New("engine: run not found")
	// ErrInvalidChoice means the submitted id matches no choice in the
	// current scene.
	ErrInvalidChoice = errors.New("engine: invalid choice")
	// ErrInvalidConsequence means the submitted id matches no offered
	// consequence.
	ErrInvalidConsequence = errors.New("engine: invalid consequence")
	// ErrNoPendingConsequence means a consequence id was submitted while no
	// failure was awaiting resolution.
	ErrNoPendingConsequence = errors.New("engine: no pending consequence")
)

// Engine drives runs. It holds no per-run state of its own; everything
// lives in the store.
type Engine struct {
	store     runstore.Store
	scenarios scenario.Provider
	log       *slog.Logger
	now       func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine over the given store and scene provider.
func New(store runstore.Store, scenarios scenario.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		scenarios: scenarios,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartInput are the creation parameters. Zero values fall back to
// defaults; Surprise picks a random genre when none is given.
type StartInput struct {
	TemplateID string
	Surprise   bool
	Genre      game.Genre
	Tone       game.Tone
	Length     game.Length
	Difficulty game.Difficulty
	Format     game.Format
}

// CreateRun builds a new run from the input, asks the provider for the
// opening scene, and stores it. No risk resolution happens here.
func (e *Engine) CreateRun(ctx context.Context, in StartInput) (*game.State, error) {
	settings := resolveSettings(in)

	runRef := seedcodec.NewRunRef()
	seed := seedcodec.Encode(settings)

	mod := game.Modifier(settings.Difficulty)
	hp := game.DefaultHP + mod.HPBonus
	supplies := game.DefaultSupplies + mod.SuppliesBonus

	now := e.now()
	state := &game.State{
		RunRef:       runRef,
		Seed:         seed,
		Turn:         1,
		HP:           hp,
		MaxHP:        hp,
		Supplies:     supplies,
		MaxSupplies:  game.DefaultMaxSupplies,
		Inventory:    []string{},
		MaxInventory: game.DefaultMaxInventory,
		Chapter:      1,
		Progress:     0,
		ThreatLevel:  game.ThreatLow,
		Scene:        e.scenarios.InitialScene(settings),
		Status:       game.StatusAwaitingChoice,
		EventsLog:    []string{},
		ItemsFound:   []string{},
		Settings:     settings,
		CreatedAt:    now,
		LastTurnAt:   now,
	}

	if err := e.store.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	e.log.InfoContext(ctx, "engine.run.created",
		slog.String("run", runRef),
		slog.String("seed", seed),
		slog.String("genre", string(settings.Genre)),
		slog.String("difficulty", string(settings.Difficulty)))

	return state, nil
}

// resolveSettings fills defaults. The surprise genre pick is the one
// deliberate use of ambient randomness: it happens before the seed exists,
// and the chosen genre is then fixed into it.
func resolveSettings(in StartInput) game.Settings {
	genre := in.Genre
	if genre == "" {
		genre = game.GenreFantasy
		if in.Surprise {
			genre = game.Genres[rand.Intn(len(game.Genres))]
		}
	}

	settings := game.Settings{
		Genre:      genre,
		Tone:       in.Tone,
		Length:     in.Length,
		Difficulty: in.Difficulty,
		Format:     in.Format,
		TemplateID: in.TemplateID,
	}
	if settings.Tone == "" {
		settings.Tone = game.DefaultTone
	}
	if settings.Length == "" {
		settings.Length = game.DefaultLength
	}
	if settings.Difficulty == "" {
		settings.Difficulty = game.DefaultDifficulty
	}
	if settings.Format == "" {
		settings.Format = game.DefaultFormat
	}
	return settings
}

// Get returns a copy of the run's current state.
func (e *Engine) Get(ctx context.Context, runRef string) (*game.State, error) {
	state, err := e.store.Get(ctx, runRef)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runRef)
		}
		return nil, err
	}
	return state, nil
}

// ProcessAction resolves one submitted action: a scene choice id while the
// run awaits a choice, or a consequence id while one is pending. The whole
// load-compute-store sequence runs under the store's per-key lock;
// outcomes that must not mutate stored state (out-of-sync retries, replays
// against an ended run) abort persistence.
func (e *Engine) ProcessAction(ctx context.Context, runRef, actionID string, clientTurn int) (ActionResult, error) {
	var result ActionResult

	state, err := e.store.Mutate(ctx, runRef, func(st *game.State) error {
		res, persist, err := e.processLocked(ctx, st, actionID, clientTurn)
		if err != nil {
			return err
		}
		result = res
		if !persist {
			return runstore.ErrNoChange
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runRef)
		}
		return nil, err
	}

	attachState(result, state)
	return result, nil
}

// attachState fills the result's state with the store's post-mutation
// snapshot, which callers may retain freely.
func attachState(result ActionResult, state *game.State) {
	switch r := result.(type) {
	case *Success:
		r.State = state
	case *PendingConsequence:
		r.State = state
	case *RunEnded:
		r.State = state
	case *OutOfSync:
		r.State = state
	}
}

// processLocked runs inside the per-key critical section. The bool reports
// whether st's mutations should be persisted.
func (e *Engine) processLocked(ctx context.Context, st *game.State, actionID string, clientTurn int) (ActionResult, bool, error) {
	// A concluded run answers every further submission with its recorded
	// ending, unchanged.
	if st.Status == game.StatusEnded {
		return &RunEnded{
			Reason:    st.EndReason,
			Narrative: e.endingNarrative(st, st.EndReason),
			Rating:    rating(st),
		}, false, nil
	}

	// Retry safety: a stale turn number on the choice path means the caller
	// missed our previous answer. Report the current turn, touch nothing.
	if st.PendingConsequence == nil && clientTurn != st.Turn {
		e.log.DebugContext(ctx, "engine.action.out_of_sync",
			slog.String("run", st.RunRef),
			slog.Int("client_turn", clientTurn),
			slog.Int("turn", st.Turn))
		return &OutOfSync{CurrentTurn: st.Turn}, false, nil
	}

	if st.PendingConsequence != nil {
		return e.resolveConsequence(st, actionID)
	}

	choice := findChoice(st.Scene.Choices, actionID)
	if choice == nil {
		if isConsequenceID(actionID) {
			return nil, false, fmt.Errorf("%w: %s", ErrNoPendingConsequence, actionID)
		}
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidChoice, actionID)
	}
	return e.processChoice(st, choice)
}

func (e *Engine) processChoice(st *game.State, choice *game.Choice) (ActionResult, bool, error) {
	riskySuccess := false
	if choice.Risk != nil {
		check := oracle.ResolveRisk(st.Seed, st.Turn, choice.ID, *choice.Risk, st.Settings.Difficulty)
		if !check.Success {
			return e.handleFailure(st, choice)
		}
		riskySuccess = true
	}

	if choice.Cost != nil {
		applyCost(st, *choice.Cost)
	}
	return e.advance(st, choice, true, riskySuccess)
}

// handleFailure offers priced consequences after a failed risk check. The
// turn does not advance until one is resolved.
func (e *Engine) handleFailure(st *game.State, choice *game.Choice) (ActionResult, bool, error) {
	return e.offerConsequences(st, choice, defaultConsequences())
}

// offerConsequences filters the candidate consequences down to what the run
// can afford. An empty affordable set past the protected turns is defeat;
// inside them the run cannot be lost yet, so a free escape is synthesized.
func (e *Engine) offerConsequences(st *game.State, choice *game.Choice, consequences []game.Consequence) (ActionResult, bool, error) {
	affordable := consequences[:0]
	for _, c := range consequences {
		if canPayCost(st, c.Cost) {
			affordable = append(affordable, c)
		}
	}

	if len(affordable) == 0 {
		if st.Turn > game.ProtectedTurns {
			return e.endLocked(st, game.EndDefeat)
		}
		affordable = append(affordable, escapeConsequence())
	}

	st.PendingConsequence = &game.ConsequenceState{
		FailedChoiceID:   choice.ID,
		Consequences:     affordable,
		FailureNarrative: safety.Soften(fmt.Sprintf("Your attempt to %q didn't go as planned. You must decide how to proceed.", choice.Label)),
	}
	st.Status = game.StatusAwaitingConsequence

	return &PendingConsequence{
		Consequences:     st.PendingConsequence.Consequences,
		FailureNarrative: st.PendingConsequence.FailureNarrative,
	}, true, nil
}

// resolveConsequence charges the chosen consequence and either ends the
// run or advances it as a partial success, keeping the originally failed
// choice as scene generation context.
func (e *Engine) resolveConsequence(st *game.State, consequenceID string) (ActionResult, bool, error) {
	pc := st.PendingConsequence

	var chosen *game.Consequence
	for i := range pc.Consequences {
		if pc.Consequences[i].ID == consequenceID {
			chosen = &pc.Consequences[i]
			break
		}
	}
	if chosen == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidConsequence, consequenceID)
	}

	applyCost(st, chosen.Cost)

	failedChoiceID := pc.FailedChoiceID
	st.PendingConsequence = nil
	st.Status = game.StatusAwaitingChoice

	if st.HP <= 0 || (st.Supplies <= 0 && st.ThreatLevel == game.ThreatHigh) {
		return e.endLocked(st, game.EndDefeat)
	}

	previous := findChoice(st.Scene.Choices, failedChoiceID)
	return e.advance(st, previous, false, false)
}

// advance moves the run one turn forward and generates the next scene. A
// full success gains 5 progress and may yield a discovery; a
// post-consequence partial success gains 2.
func (e *Engine) advance(st *game.State, choice *game.Choice, fullSuccess, riskySuccess bool) (ActionResult, bool, error) {
	st.Turn++

	gain := 2
	if fullSuccess {
		gain = 5
	}
	st.Progress = min(100, st.Progress+gain)
	if st.Progress >= 100 {
		return e.endLocked(st, game.EndVictory)
	}

	st.ThreatLevel = threatLevel(st)

	if fullSuccess {
		e.rollDiscovery(st)
		if riskySuccess {
			st.ThreatsDefeated++
		}
	}

	st.Scene = e.scenarios.NextScene(st, choice)
	st.Chapter = st.Scene.ChapterID

	if choice != nil {
		st.EventsLog = append(st.EventsLog, fmt.Sprintf("Turn %d: %s", st.Turn-1, choice.Label))
	}

	return &Success{Narrative: st.Scene.Narrative}, true, nil
}

// rollDiscovery gives a fully successful turn a seeded chance of finding
// an item from the provider's table.
func (e *Engine) rollDiscovery(st *game.State) {
	if !oracle.ShouldOccur(st.Seed, st.Turn, "discovery", game.DiscoveryChancePct) {
		return
	}
	items := e.scenarios.Discoveries(st)
	item, err := oracle.SelectFrom(st.Seed, st.Turn, "discovery", items)
	if err != nil {
		// Empty discovery table is a content bug, not a player error.
		e.log.Warn("engine.discovery.empty_table",
			slog.String("run", st.RunRef),
			slog.String("err", err.Error()))
		return
	}
	if len(st.Inventory) < st.MaxInventory {
		st.Inventory = append(st.Inventory, item)
	}
	st.ItemsFound = append(st.ItemsFound, item)
	st.EventsLog = append(st.EventsLog, fmt.Sprintf("Found: %s", item))
}

// endLocked concludes the run in place.
func (e *Engine) endLocked(st *game.State, reason game.EndReason) (ActionResult, bool, error) {
	if reason == game.EndVictory {
		st.Progress = 100
	}
	st.PendingConsequence = nil
	st.Status = game.StatusEnded
	st.EndReason = reason

	return &RunEnded{
		Reason:    reason,
		Narrative: e.endingNarrative(st, reason),
		Rating:    rating(st),
	}, true, nil
}

// endingNarrative is deterministic per run, so replayed reports of a
// concluded run always read the same.
func (e *Engine) endingNarrative(st *game.State, reason game.EndReason) string {
	if reason == game.EndDefeat {
		style := safety.DeathFade
		if st.Settings.Tone == game.ToneLight {
			style = safety.DeathReset
		}
		return safety.DeathNarrative(style, st.Seed)
	}

	switch reason {
	case game.EndVictory:
		return safety.Soften("Against all odds, you succeeded. Your journey reaches its triumphant conclusion.")
	case game.EndEscape:
		return safety.Soften("You managed to escape, though the adventure remains unfinished.")
	default:
		return safety.Soften("You chose to abandon this path. Perhaps another time.")
	}
}

// EndRun explicitly concludes a run with the given reason. Ending an
// already-ended run reports the recorded ending without rewriting it.
func (e *Engine) EndRun(ctx context.Context, runRef string, reason game.EndReason) (*RunEnded, error) {
	var ended *RunEnded

	state, err := e.store.Mutate(ctx, runRef, func(st *game.State) error {
		if st.Status == game.StatusEnded {
			ended = &RunEnded{
				Reason:    st.EndReason,
				Narrative: e.endingNarrative(st, st.EndReason),
				Rating:    rating(st),
			}
			return runstore.ErrNoChange
		}
		res, _, err := e.endLocked(st, reason)
		if err != nil {
			return err
		}
		ended = res.(*RunEnded)
		return nil
	})
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runRef)
		}
		return nil, err
	}

	ended.State = state
	e.log.InfoContext(ctx, "engine.run.ended",
		slog.String("run", runRef),
		slog.String("reason", string(ended.Reason)),
		slog.Int("turns", state.Turn),
		slog.Int("stars", ended.Rating.Stars))
	return ended, nil
}
