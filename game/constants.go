package game

import "time"

// Base resources before difficulty modifiers.
const (
	DefaultHP           = 10
	DefaultSupplies     = 5
	DefaultMaxSupplies  = 10
	DefaultMaxInventory = 8
)

// Defaults applied when a start request leaves a setting blank.
const (
	DefaultTone       = ToneLight
	DefaultLength     = LengthMedium
	DefaultDifficulty = DifficultyNormal
	DefaultFormat     = FormatQuest
)

// DifficultyModifier tunes starting resources and risk math per difficulty.
type DifficultyModifier struct {
	HPBonus       int
	SuppliesBonus int
	// RiskReduction shifts every success threshold; positive is easier.
	RiskReduction int
	// ThreatSlowdown scales the threat score; below 1.0 escalates slower.
	ThreatSlowdown float64
}

// DifficultyModifiers are behavioral contracts: shared seeds replay against
// these exact numbers, so they must not be retuned casually.
var DifficultyModifiers = map[Difficulty]DifficultyModifier{
	DifficultyEasy:   {HPBonus: 2, SuppliesBonus: 2, RiskReduction: 10, ThreatSlowdown: 0.7},
	DifficultyNormal: {HPBonus: 0, SuppliesBonus: 0, RiskReduction: 0, ThreatSlowdown: 1.0},
	DifficultyHard:   {HPBonus: -2, SuppliesBonus: -1, RiskReduction: -10, ThreatSlowdown: 1.3},
}

// Modifier returns the tuning for d, falling back to normal for unknown
// values so malformed input never zeroes the threat multiplier.
func Modifier(d Difficulty) DifficultyModifier {
	if m, ok := DifficultyModifiers[d]; ok {
		return m
	}
	return DifficultyModifiers[DifficultyNormal]
}

// LengthSetting describes pacing targets per requested run length.
type LengthSetting struct {
	TargetTurns   int
	ChaptersCount int
}

var LengthSettings = map[Length]LengthSetting{
	LengthShort:  {TargetTurns: 15, ChaptersCount: 3},
	LengthMedium: {TargetTurns: 30, ChaptersCount: 5},
	LengthLong:   {TargetTurns: 50, ChaptersCount: 8},
}

// RatingBand maps a minimum score to a star rating.
type RatingBand struct {
	MinScore int
	Stars    int
	Title    string
}

// RatingBands is ordered from highest band to lowest.
var RatingBands = []RatingBand{
	{MinScore: 80, Stars: 5, Title: "Legendary Hero"},
	{MinScore: 60, Stars: 4, Title: "Veteran Explorer"},
	{MinScore: 40, Stars: 3, Title: "Adventurer"},
	{MinScore: 20, Stars: 2, Title: "Apprentice"},
	{MinScore: 0, Stars: 1, Title: "Novice"},
}

// Run lifecycle tuning.
const (
	// RunTTL is how long an idle run survives before the sweep evicts it.
	RunTTL = 4 * time.Hour
	// SweepInterval is how often the store scans for idle runs.
	SweepInterval = 30 * time.Minute
	// ProtectedTurns is the initial window during which a run cannot be
	// outright defeated, only offered a free escape.
	ProtectedTurns = 3
	// DiscoveryChancePct is the per-turn chance of finding an item after a
	// fully successful action.
	DiscoveryChancePct = 25
)
