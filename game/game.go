// Package game defines the shared domain model for Game Factory runs:
// settings, scenes, choices, costs, templates, and the full per-run state
// record persisted by the run store.
package game

import "time"

type Genre string

const (
	GenreFantasy    Genre = "fantasy"
	GenreSciFi      Genre = "sci-fi"
	GenreMystery    Genre = "mystery"
	GenreHorrorLite Genre = "horror-lite"
)

// Genres lists every playable genre in a stable order.
var Genres = []Genre{GenreFantasy, GenreSciFi, GenreMystery, GenreHorrorLite}

type Tone string

const (
	ToneSerious Tone = "serious"
	ToneLight   Tone = "light"
)

type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

type Format string

const (
	FormatQuest  Format = "quest"
	FormatArcade Format = "arcade"
	FormatPuzzle Format = "puzzle"
)

// EndReason records why a run concluded.
type EndReason string

const (
	EndVictory EndReason = "victory"
	EndDefeat  EndReason = "defeat"
	EndEscape  EndReason = "escape"
	EndAbandon EndReason = "abandon"
)

// Status tracks which kind of action a run currently accepts.
type Status string

const (
	// StatusAwaitingChoice means the run accepts scene choice ids.
	StatusAwaitingChoice Status = "awaiting_choice"
	// StatusAwaitingConsequence means the run accepts only consequence ids.
	StatusAwaitingConsequence Status = "awaiting_consequence"
	// StatusEnded means the run is terminal and accepts no further actions.
	StatusEnded Status = "ended"
)

// CostKind names the resource a cost is charged against.
type CostKind string

const (
	CostHP       CostKind = "hp"
	CostSupplies CostKind = "supplies"
	CostTurn     CostKind = "turn"
	CostThreat   CostKind = "threat"
	CostItem     CostKind = "item"
)

// Settings are fixed at run creation and never change afterwards.
type Settings struct {
	Genre      Genre      `json:"genre"`
	Tone       Tone       `json:"tone"`
	Length     Length     `json:"length"`
	Difficulty Difficulty `json:"difficulty"`
	Format     Format     `json:"format"`
	TemplateID string     `json:"templateId,omitempty"`
}

// Cost is a price attached to a choice or consequence.
type Cost struct {
	Kind   CostKind `json:"kind"`
	Amount int      `json:"amount"`
	Effect string   `json:"effect,omitempty"`
}

// Choice is one selectable option in a scene. A nil Risk means the choice
// always succeeds; otherwise Risk is the success percentage (0-100).
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Risk  *int   `json:"risk"`
	Cost  *Cost  `json:"cost"`
}

// Consequence is a priced fallback offered after a failed risk check. Unlike
// a choice cost, a consequence cost is never absent.
type Consequence struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Cost  Cost   `json:"cost"`
}

// ConsequenceState is set while a failed risk check awaits resolution. While
// non-nil the run accepts only the listed consequence ids.
type ConsequenceState struct {
	FailedChoiceID   string        `json:"failedChoiceId"`
	Consequences     []Consequence `json:"consequences"`
	FailureNarrative string        `json:"failureNarrative"`
}

// Scene is the current interaction unit presented to the player.
type Scene struct {
	ChapterID int      `json:"chapterId"`
	Title     string   `json:"title"`
	Narrative string   `json:"narrative"`
	Choices   []Choice `json:"choices"`
}

// Rating summarizes a concluded run.
type Rating struct {
	Stars int    `json:"stars"`
	Title string `json:"title"`
}

// State is the full record for one run. It is mutated exclusively by the
// engine inside the store's per-key critical section.
type State struct {
	RunRef string `json:"runRef"`
	Seed   string `json:"seed"`

	Turn         int      `json:"turn"`
	HP           int      `json:"hp"`
	MaxHP        int      `json:"maxHp"`
	Supplies     int      `json:"supplies"`
	MaxSupplies  int      `json:"maxSupplies"`
	Inventory    []string `json:"inventory"`
	MaxInventory int      `json:"maxInventory"`

	Chapter     int         `json:"chapter"`
	Progress    int         `json:"progress"`
	ThreatLevel ThreatLevel `json:"threatLevel"`

	Scene              Scene             `json:"scene"`
	PendingConsequence *ConsequenceState `json:"pendingConsequence"`

	Status    Status    `json:"status"`
	EndReason EndReason `json:"endReason,omitempty"`

	EventsLog       []string `json:"eventsLog"`
	ItemsFound      []string `json:"itemsFound"`
	ThreatsDefeated int      `json:"threatsDefeated"`

	Settings Settings `json:"settings"`

	CreatedAt  time.Time `json:"createdAt"`
	LastTurnAt time.Time `json:"lastTurnAt"`
}

// Clone returns a deep copy of the state so callers can read or mutate it
// without racing the stored record.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Inventory = append([]string(nil), s.Inventory...)
	out.EventsLog = append([]string(nil), s.EventsLog...)
	out.ItemsFound = append([]string(nil), s.ItemsFound...)
	out.Scene = s.Scene.Clone()
	if s.PendingConsequence != nil {
		pc := *s.PendingConsequence
		pc.Consequences = cloneConsequences(s.PendingConsequence.Consequences)
		out.PendingConsequence = &pc
	}
	return &out
}

// Clone deep-copies the scene, including choice risk and cost pointers.
func (sc Scene) Clone() Scene {
	out := sc
	out.Choices = make([]Choice, len(sc.Choices))
	for i, c := range sc.Choices {
		out.Choices[i] = c.clone()
	}
	return out
}

func (c Choice) clone() Choice {
	out := c
	if c.Risk != nil {
		r := *c.Risk
		out.Risk = &r
	}
	if c.Cost != nil {
		cost := *c.Cost
		out.Cost = &cost
	}
	return out
}

func cloneConsequences(in []Consequence) []Consequence {
	return append([]Consequence(nil), in...)
}

// Template is a curated world definition loaded from the template library.
type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Genre       Genre      `json:"genre"`
	Difficulty  Difficulty `json:"difficulty"`
	Featured    bool       `json:"featured"`

	World struct {
		Setting    string   `json:"setting"`
		Era        string   `json:"era"`
		Atmosphere string   `json:"atmosphere"`
		Tags       []string `json:"tags"`
	} `json:"world"`

	Mechanics struct {
		ResourcePressure string `json:"resourcePressure"`
		ThreatEscalation string `json:"threatEscalation"`
		PuzzleFrequency  string `json:"puzzleFrequency"`
		NPCInteraction   string `json:"npcInteraction"`
	} `json:"mechanics"`

	Safety struct {
		MaxViolenceLevel int      `json:"maxViolenceLevel"`
		ForbiddenThemes  []string `json:"forbiddenThemes"`
		DeathStyle       string   `json:"deathStyle"`
	} `json:"safety"`

	InitialScene *Scene `json:"initialScene,omitempty"`

	Encounters struct {
		Threats     []string `json:"threats"`
		Discoveries []string `json:"discoveries"`
		Puzzles     []string `json:"puzzles"`
	} `json:"encounters"`
}
