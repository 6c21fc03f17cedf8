// Package scenario produces the scenes a run moves through: the opening
// scene for each genre or template, continuation scenes scaled to the
// current threat level, and the discovery tables the engine draws items
// from. All narratives pass through the safety softener before they leave
// this package.
package scenario

import (
	"fmt"
	"strings"

	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/safety"
)

// Provider supplies scene content to the engine. Implementations must be
// safe for concurrent use; the engine calls them from per-run critical
// sections on many goroutines.
type Provider interface {
	// InitialScene returns the opening scene for a new run.
	InitialScene(settings game.Settings) game.Scene

	// NextScene returns the continuation scene after an advance. It is
	// called after the turn counter has been incremented; previous is the
	// choice that led here, nil when a consequence resolution lost track
	// of one.
	NextScene(state *game.State, previous *game.Choice) game.Scene

	// Discoveries returns the item table a successful turn may draw from.
	Discoveries(state *game.State) []string
}

func intPtr(v int) *int { return &v }

var builtinScenes = map[game.Genre]game.Scene{
	game.GenreFantasy: {
		ChapterID: 1,
		Title:     "The Awakening",
		Narrative: "You wake in a dimly lit stone chamber. Ancient runes glow faintly on the walls. " +
			"A wooden door stands before you, and a narrow passage leads into darkness to your left. " +
			"Your pack lies nearby with basic supplies.",
		Choices: []game.Choice{
			{ID: "c1", Label: "Examine the glowing runes", Risk: nil, Cost: nil},
			{ID: "c2", Label: "Try the wooden door", Risk: intPtr(70), Cost: nil},
			{ID: "c3", Label: "Explore the dark passage", Risk: intPtr(60), Cost: nil},
		},
	},
	game.GenreSciFi: {
		ChapterID: 1,
		Title:     "Emergency Wake",
		Narrative: "Emergency lights pulse red as you emerge from cryo-sleep. The station is silent except " +
			"for the hum of failing life support. Your heads-up display flickers, showing critical " +
			"system alerts. A sealed bulkhead blocks the main corridor.",
		Choices: []game.Choice{
			{ID: "c1", Label: "Check the terminal for status", Risk: nil, Cost: nil},
			{ID: "c2", Label: "Override the bulkhead seal", Risk: intPtr(70), Cost: nil},
			{ID: "c3", Label: "Search for an alternate route", Risk: nil, Cost: &game.Cost{Kind: game.CostTurn, Amount: 1}},
		},
	},
	game.GenreMystery: {
		ChapterID: 1,
		Title:     "The Study",
		Narrative: "The old manor's study is exactly as described in the letter. Dusty bookshelves line " +
			"the walls, and a large desk dominates the center. Something feels wrong. The grandfather " +
			"clock has stopped at midnight, and papers are scattered as if someone left in a hurry.",
		Choices: []game.Choice{
			{ID: "c1", Label: "Examine the scattered papers", Risk: nil, Cost: nil},
			{ID: "c2", Label: "Check behind the bookshelf", Risk: intPtr(70), Cost: nil},
			{ID: "c3", Label: "Investigate the stopped clock", Risk: nil, Cost: nil},
		},
	},
	game.GenreHorrorLite: {
		ChapterID: 1,
		Title:     "The Cabin",
		Narrative: "The cabin looked abandoned from outside, but inside shows signs of recent occupation. " +
			"A fire still smolders in the hearth. Through the grimy window, fog rolls through the " +
			"trees. You hear a sound from the basement - rhythmic, like breathing.",
		Choices: []game.Choice{
			{ID: "c1", Label: "Investigate the basement carefully", Risk: intPtr(60), Cost: nil},
			{ID: "c2", Label: "Search the main floor first", Risk: nil, Cost: nil},
			{ID: "c3", Label: "Barricade the basement door", Risk: nil, Cost: &game.Cost{Kind: game.CostSupplies, Amount: 1}},
		},
	},
}

var builtinDiscoveries = map[game.Genre][]string{
	game.GenreFantasy:    {"Healing Herb", "Rune-Etched Dagger", "Traveler's Map", "Ancient Talisman"},
	game.GenreSciFi:      {"Keycard", "Power Cell", "Medkit", "Signal Beacon"},
	game.GenreMystery:    {"Torn Letter", "Brass Key", "Pocket Watch", "Hidden Ledger"},
	game.GenreHorrorLite: {"Old Lantern", "Silver Charm", "Matchbook", "Worn Journal"},
}

// builtinScene returns the canned opening scene for a genre, softened.
// Unknown genres fall back to fantasy.
func builtinScene(genre game.Genre) game.Scene {
	sc, ok := builtinScenes[genre]
	if !ok {
		sc = builtinScenes[game.GenreFantasy]
	}
	out := sc.Clone()
	out.Narrative = safety.Soften(out.Narrative)
	return out
}

// continuationScene builds the generic next scene. Base risk tightens as
// threat rises, and the quick route always sits 20 points below it.
func continuationScene(state *game.State) game.Scene {
	baseRisk := 80
	switch state.ThreatLevel {
	case game.ThreatHigh:
		baseRisk = 60
	case game.ThreatMedium:
		baseRisk = 70
	}

	place := "area"
	if state.Settings.Genre == game.GenreSciFi {
		place = "station"
	}
	mood := "quiet"
	switch state.ThreatLevel {
	case game.ThreatHigh:
		mood = "dangerous"
	case game.ThreatMedium:
		mood = "tense"
	}
	supplies := "adequate"
	if state.Supplies <= 3 {
		supplies = "running low"
	}

	return game.Scene{
		ChapterID: state.Turn/5 + 1,
		Title:     fmt.Sprintf("Scene %d", state.Turn),
		Narrative: safety.Soften(fmt.Sprintf(
			"You continue your journey. The %s feels %s. Your supplies are %s.",
			place, mood, supplies,
		)),
		Choices: []game.Choice{
			{ID: fmt.Sprintf("c%d-1", state.Turn), Label: "Proceed cautiously", Risk: intPtr(baseRisk)},
			{ID: fmt.Sprintf("c%d-2", state.Turn), Label: "Take the quick route", Risk: intPtr(baseRisk - 20)},
			{ID: fmt.Sprintf("c%d-3", state.Turn), Label: "Rest and recover", Risk: nil,
				Cost: &game.Cost{Kind: game.CostTurn, Amount: 1, Effect: "Recover 1 HP"}},
		},
	}
}

// WorldName names the setting for share text and widgets. A template id
// wins over the genre default and is rendered by title-casing its words.
func WorldName(genre game.Genre, templateID string) string {
	if templateID != "" {
		words := strings.Split(templateID, "-")
		for i, w := range words {
			if w == "" {
				continue
			}
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	}

	switch genre {
	case game.GenreFantasy:
		return "The Ancient Realm"
	case game.GenreSciFi:
		return "Abandoned Station"
	case game.GenreMystery:
		return "Thornwood Manor"
	case game.GenreHorrorLite:
		return "The Forsaken Cabin"
	default:
		return "Unknown World"
	}
}
