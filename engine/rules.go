package engine

import (
	"github.com/gamefactory/gamefactory-go/game"
)

// defaultConsequences are the fallback options offered after any failed
// risk check.
func defaultConsequences() []game.Consequence {
	return []game.Consequence{
		{ID: "f1", Label: "Push through (lose 2 HP)", Cost: game.Cost{Kind: game.CostHP, Amount: 2}},
		{ID: "f2", Label: "Find another way (lose 1 turn)", Cost: game.Cost{Kind: game.CostTurn, Amount: 1}},
		{ID: "f3", Label: "Use supplies to help (lose 1 supply)", Cost: game.Cost{Kind: game.CostSupplies, Amount: 1}},
	}
}

// escapeConsequence is the zero-cost escape synthesized while a run is
// still inside its protected turns.
func escapeConsequence() game.Consequence {
	return game.Consequence{
		ID:    "escape-free",
		Label: "Barely escape (this time)",
		Cost:  game.Cost{Kind: game.CostTurn, Amount: 0, Effect: "Lucky escape"},
	}
}

// canPayCost reports whether the run can afford a cost right now. HP costs
// require strictly more hp than the amount: a consequence choice may wound
// but never kill outright.
func canPayCost(st *game.State, cost game.Cost) bool {
	switch cost.Kind {
	case game.CostHP:
		return st.HP > cost.Amount
	case game.CostSupplies:
		return st.Supplies >= cost.Amount
	case game.CostItem:
		return len(st.Inventory) > 0
	default:
		// Turn and threat costs are always payable.
		return true
	}
}

// applyCost charges a cost against the run. HP and supplies clamp at zero;
// a turn cost has no direct numeric effect beyond its description.
func applyCost(st *game.State, cost game.Cost) {
	switch cost.Kind {
	case game.CostHP:
		st.HP = max(0, st.HP-cost.Amount)
	case game.CostSupplies:
		st.Supplies = max(0, st.Supplies-cost.Amount)
	case game.CostThreat:
		switch st.ThreatLevel {
		case game.ThreatLow:
			st.ThreatLevel = game.ThreatMedium
		case game.ThreatMedium:
			st.ThreatLevel = game.ThreatHigh
		}
	case game.CostItem:
		if n := len(st.Inventory); n > 0 {
			st.Inventory = st.Inventory[:n-1]
		}
	}
}

// threatLevel recomputes the danger rating from the turn counter and the
// player's remaining resources. Shared seeds replay against these
// constants; changing them breaks old challenge codes.
func threatLevel(st *game.State) game.ThreatLevel {
	score := float64(2*st.Turn + (10 - st.HP) + (5 - st.Supplies))
	adjusted := score * game.Modifier(st.Settings.Difficulty).ThreatSlowdown

	switch {
	case adjusted < 15:
		return game.ThreatLow
	case adjusted < 30:
		return game.ThreatMedium
	default:
		return game.ThreatHigh
	}
}

// rating scores a concluded run into a star band.
func rating(st *game.State) game.Rating {
	score := 2*st.Turn + st.Progress + 5*len(st.ItemsFound) + 3*st.ThreatsDefeated
	for _, band := range game.RatingBands {
		if score >= band.MinScore {
			return game.Rating{Stars: band.Stars, Title: band.Title}
		}
	}
	last := game.RatingBands[len(game.RatingBands)-1]
	return game.Rating{Stars: last.Stars, Title: last.Title}
}

// isConsequenceID reports whether id belongs to the consequence namespace
// rather than a scene choice.
func isConsequenceID(id string) bool {
	if id == escapeConsequence().ID {
		return true
	}
	for _, c := range defaultConsequences() {
		if c.ID == id {
			return true
		}
	}
	return false
}

func findChoice(choices []game.Choice, id string) *game.Choice {
	for i := range choices {
		if choices[i].ID == id {
			return &choices[i]
		}
	}
	return nil
}
