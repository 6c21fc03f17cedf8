package gamesvc

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gamefactory/gamefactory-go/engine"
	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/internal/logctx"
	"github.com/gamefactory/gamefactory-go/internal/ratelimit"
	"github.com/gamefactory/gamefactory-go/safety"
	"github.com/gamefactory/gamefactory-go/scenario"
	"github.com/gamefactory/gamefactory-go/seedcodec"
)

// maxPromptLength bounds the free-form prompt accepted by start_run.
const maxPromptLength = 200

// ChoiceView is the concise choice rendering shared by several results.
type ChoiceView struct {
	ID    string `json:"id" jsonschema:"choice identifier to submit via act"`
	Label string `json:"label" jsonschema:"player-facing description"`
	Risk  *int   `json:"risk" jsonschema:"success percentage, null for guaranteed success"`
	Cost  string `json:"cost,omitempty" jsonschema:"cost summary, empty when free"`
}

// ListTemplatesInput filters the template shelf.
type ListTemplatesInput struct {
	Genre    string `json:"genre,omitempty" jsonschema:"filter by genre (fantasy, sci-fi, mystery, horror-lite)"`
	Featured bool   `json:"featured,omitempty" jsonschema:"only show featured templates"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of templates to return (default 20)"`
}

// TemplateInfo is the concise template summary for the model.
type TemplateInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Genre      string `json:"genre"`
	Difficulty string `json:"difficulty"`
}

// ListTemplatesResult lists matching templates.
type ListTemplatesResult struct {
	Templates []TemplateInfo `json:"templates"`
	Total     int            `json:"total"`
}

func (s *Service) handleListTemplates(ctx context.Context, _ *mcp.CallToolRequest, in ListTemplatesInput) (*mcp.CallToolResult, ListTemplatesResult, error) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: "list_templates"})

	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	matched := s.library.Filter(game.Genre(in.Genre), in.Featured)
	total := len(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	infos := make([]TemplateInfo, len(matched))
	details := make([]map[string]any, len(matched))
	for i, tpl := range matched {
		infos[i] = TemplateInfo{
			ID:         tpl.ID,
			Name:       tpl.Name,
			Genre:      string(tpl.Genre),
			Difficulty: string(tpl.Difficulty),
		}
		details[i] = map[string]any{
			"id":          tpl.ID,
			"name":        tpl.Name,
			"description": tpl.Description,
			"genre":       string(tpl.Genre),
			"difficulty":  string(tpl.Difficulty),
			"featured":    tpl.Featured,
			"tags":        tpl.World.Tags,
			"atmosphere":  tpl.World.Atmosphere,
		}
	}

	s.log.DebugContext(ctx, "gamesvc.list_templates", "total", total, "returned", len(infos))

	meta := &mcp.CallToolResult{Meta: map[string]any{
		"openai/outputTemplate": "TemplateShelf",
		"templateDetails":       details,
	}}
	return meta, ListTemplatesResult{Templates: infos, Total: total}, nil
}

// StartRunInput are the creation parameters for a new run.
type StartRunInput struct {
	TemplateID string `json:"templateId,omitempty" jsonschema:"id of a curated template to use"`
	Surprise   bool   `json:"surprise,omitempty" jsonschema:"set true for a random quick-start"`
	Genre      string `json:"genre,omitempty" jsonschema:"game genre (fantasy, sci-fi, mystery, horror-lite)"`
	Tone       string `json:"tone,omitempty" jsonschema:"narrative tone (serious, light)"`
	Length     string `json:"length,omitempty" jsonschema:"target game length (short, medium, long)"`
	Difficulty string `json:"difficulty,omitempty" jsonschema:"game difficulty (easy, normal, hard)"`
	Format     string `json:"format,omitempty" jsonschema:"game visual format (quest, arcade, puzzle)"`
	Prompt     string `json:"prompt,omitempty" jsonschema:"natural language description of the desired game"`
}

// StartRunResult is the concise opening state for the model.
type StartRunResult struct {
	RunRef       string       `json:"runRef" jsonschema:"run reference for subsequent act calls"`
	Turn         int          `json:"turn"`
	HP           int          `json:"hp"`
	Supplies     int          `json:"supplies"`
	Threat       string       `json:"threat"`
	InvCount     int          `json:"invCount"`
	Choices      []ChoiceView `json:"choices"`
	SceneSummary string       `json:"sceneSummary"`
}

func (s *Service) handleStartRun(ctx context.Context, _ *mcp.CallToolRequest, in StartRunInput) (*mcp.CallToolResult, StartRunResult, error) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: "start_run"})

	if err := s.allow(ratelimit.StartRun); err != nil {
		return nil, StartRunResult{}, err
	}

	// The prompt is advisory flavor, but hostile content in it is rejected
	// before anything else happens.
	if in.Prompt != "" {
		if _, err := safety.SanitizeInput(in.Prompt, maxPromptLength); err != nil {
			return nil, StartRunResult{}, fmt.Errorf("prompt rejected: %w", err)
		}
	}

	start := engine.StartInput{
		TemplateID: in.TemplateID,
		Surprise:   in.Surprise,
		Genre:      game.Genre(in.Genre),
		Tone:       game.Tone(in.Tone),
		Length:     game.Length(in.Length),
		Difficulty: game.Difficulty(in.Difficulty),
		Format:     game.Format(in.Format),
	}

	// A surprise start prefers a random curated template when any are
	// loaded; otherwise the engine falls back to a random genre.
	if start.Surprise && start.TemplateID == "" && start.Genre == "" {
		if tpl, err := s.library.Random(); err == nil {
			start.TemplateID = tpl.ID
		}
	}

	// A template fixes genre and defaults difficulty unless overridden.
	if start.TemplateID != "" {
		tpl, ok := s.library.Get(start.TemplateID)
		if !ok {
			return nil, StartRunResult{}, fmt.Errorf("unknown template: %s", start.TemplateID)
		}
		start.Genre = tpl.Genre
		if start.Difficulty == "" {
			start.Difficulty = tpl.Difficulty
		}
	}

	state, err := s.engine.CreateRun(ctx, start)
	if err != nil {
		return nil, StartRunResult{}, err
	}

	ctx = logctx.WithRunData(ctx, &logctx.RunData{RunRef: state.RunRef, Seed: state.Seed, Turn: state.Turn})
	s.log.InfoContext(ctx, "gamesvc.start_run.ok")

	result := StartRunResult{
		RunRef:       state.RunRef,
		Turn:         state.Turn,
		HP:           state.HP,
		Supplies:     state.Supplies,
		Threat:       string(state.ThreatLevel),
		InvCount:     len(state.Inventory),
		Choices:      choiceViews(state.Scene.Choices),
		SceneSummary: state.Scene.Title,
	}
	meta := &mcp.CallToolResult{Meta: map[string]any{
		"openai/outputTemplate": outputTemplate(state.Settings.Format),
		"runRef":                state.RunRef,
		"seed":                  state.Seed,
		"narrative":             state.Scene.Narrative,
		"worldName":             scenario.WorldName(state.Settings.Genre, state.Settings.TemplateID),
		"chapterTitle":          state.Scene.Title,
	}}
	return meta, result, nil
}

// ActInput submits one action against a run.
type ActInput struct {
	RunRef     string `json:"runRef" jsonschema:"run reference from start_run"`
	ActionID   string `json:"actionId" jsonschema:"id of the choice or consequence to apply"`
	ClientTurn int    `json:"clientTurn" jsonschema:"last known turn number for retry-safety"`
}

// ConsequenceView is a pending consequence option.
type ConsequenceView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ActResult reports one of four outcomes, discriminated by Outcome.
type ActResult struct {
	Outcome string `json:"outcome" jsonschema:"one of success, pending_consequence, run_ended, out_of_sync"`

	// Numeric state fields are always serialized: hp 0 and an empty
	// inventory are legitimate values the model must see, not absences.
	Turn         int          `json:"turn"`
	HP           int          `json:"hp"`
	Supplies     int          `json:"supplies"`
	Threat       string       `json:"threat,omitempty"`
	InvCount     int          `json:"invCount"`
	Changes      string       `json:"changes,omitempty"`
	Choices      []ChoiceView `json:"choices,omitempty"`
	SceneSummary string       `json:"sceneSummary,omitempty"`

	// pending_consequence
	Consequences   []ConsequenceView `json:"consequences,omitempty"`
	FailureSummary string            `json:"failureSummary,omitempty"`

	// run_ended
	Reason        string `json:"reason,omitempty"`
	EndingSummary string `json:"endingSummary,omitempty"`

	// out_of_sync
	CurrentTurn int    `json:"currentTurn,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (s *Service) handleAct(ctx context.Context, _ *mcp.CallToolRequest, in ActInput) (*mcp.CallToolResult, ActResult, error) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: "act"})

	if err := s.allow(ratelimit.Act); err != nil {
		return nil, ActResult{}, err
	}
	if in.RunRef == "" || in.ActionID == "" {
		return nil, ActResult{}, fmt.Errorf("runRef and actionId are required")
	}
	if in.ClientTurn < 1 {
		return nil, ActResult{}, fmt.Errorf("clientTurn must be a positive integer")
	}

	outcome, err := s.engine.ProcessAction(ctx, in.RunRef, in.ActionID, in.ClientTurn)
	if err != nil {
		return nil, ActResult{}, err
	}

	switch res := outcome.(type) {
	case *engine.Success:
		st := res.State
		ctx = logctx.WithRunData(ctx, &logctx.RunData{RunRef: st.RunRef, Seed: st.Seed, Turn: st.Turn})
		s.log.InfoContext(ctx, "gamesvc.act.success")
		result := ActResult{
			Outcome:      "success",
			Turn:         st.Turn,
			HP:           st.HP,
			Supplies:     st.Supplies,
			Threat:       string(st.ThreatLevel),
			InvCount:     len(st.Inventory),
			Changes:      lastChange(st),
			Choices:      choiceViews(st.Scene.Choices),
			SceneSummary: st.Scene.Title,
		}
		meta := &mcp.CallToolResult{Meta: map[string]any{
			"openai/outputTemplate": "SceneCard",
			"runRef":                st.RunRef,
			"narrative":             res.Narrative,
			"chapterTitle":          st.Scene.Title,
		}}
		return meta, result, nil

	case *engine.PendingConsequence:
		st := res.State
		views := make([]ConsequenceView, len(res.Consequences))
		for i, c := range res.Consequences {
			views[i] = ConsequenceView{ID: c.ID, Label: c.Label}
		}
		result := ActResult{
			Outcome:        "pending_consequence",
			Turn:           st.Turn,
			HP:             st.HP,
			Supplies:       st.Supplies,
			InvCount:       len(st.Inventory),
			Consequences:   views,
			FailureSummary: "Action failed, choose consequence",
		}
		meta := &mcp.CallToolResult{Meta: map[string]any{
			"openai/outputTemplate": "ConsequenceCard",
			"runRef":                st.RunRef,
			"failureNarrative":      res.FailureNarrative,
		}}
		return meta, result, nil

	case *engine.RunEnded:
		summary := fmt.Sprintf("Run completed: %s", res.Reason)
		if res.Reason == game.EndDefeat {
			summary = "Run ended"
		}
		st := res.State
		result := ActResult{
			Outcome:       "run_ended",
			Turn:          st.Turn,
			HP:            st.HP,
			Supplies:      st.Supplies,
			InvCount:      len(st.Inventory),
			Reason:        string(res.Reason),
			EndingSummary: summary,
		}
		meta := &mcp.CallToolResult{Meta: map[string]any{
			"openai/outputTemplate": "EndRunCard",
			"runRef":                st.RunRef,
			"endingNarrative":       res.Narrative,
		}}
		return meta, result, nil

	case *engine.OutOfSync:
		st := res.State
		result := ActResult{
			Outcome:     "out_of_sync",
			Turn:        st.Turn,
			CurrentTurn: res.CurrentTurn,
			HP:          st.HP,
			Supplies:    st.Supplies,
			InvCount:    len(st.Inventory),
			Message:     "Action already applied, refreshing state",
		}
		meta := &mcp.CallToolResult{Meta: map[string]any{
			"openai/outputTemplate": "SceneCard",
			"runRef":                st.RunRef,
			"narrative":             st.Scene.Narrative,
			"chapterTitle":          st.Scene.Title,
		}}
		return meta, result, nil

	default:
		return nil, ActResult{}, fmt.Errorf("unexpected outcome type %T", outcome)
	}
}

// EndRunInput concludes a run explicitly.
type EndRunInput struct {
	RunRef string `json:"runRef" jsonschema:"run reference from start_run"`
	Reason string `json:"reason" jsonschema:"reason for ending (victory, defeat, escape, abandon)"`
}

// RatingView is the star rating summary.
type RatingView struct {
	Stars int    `json:"stars"`
	Title string `json:"title"`
}

// EndRunResult is the final run summary, including the shareable seed.
type EndRunResult struct {
	TurnsSurvived   int        `json:"turnsSurvived"`
	ItemsFound      int        `json:"itemsFound"`
	ThreatsDefeated int        `json:"threatsDefeated"`
	ProgressReached int        `json:"progressReached"`
	Rating          RatingView `json:"rating"`
	Seed            string     `json:"seed"`
}

func validEndReason(reason string) bool {
	switch game.EndReason(reason) {
	case game.EndVictory, game.EndDefeat, game.EndEscape, game.EndAbandon:
		return true
	}
	return false
}

func (s *Service) handleEndRun(ctx context.Context, _ *mcp.CallToolRequest, in EndRunInput) (*mcp.CallToolResult, EndRunResult, error) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: "end_run"})

	if in.RunRef == "" {
		return nil, EndRunResult{}, fmt.Errorf("runRef is required")
	}
	if !validEndReason(in.Reason) {
		return nil, EndRunResult{}, fmt.Errorf("invalid reason: %q", in.Reason)
	}

	ended, err := s.engine.EndRun(ctx, in.RunRef, game.EndReason(in.Reason))
	if err != nil {
		return nil, EndRunResult{}, err
	}
	st := ended.State

	ctx = logctx.WithRunData(ctx, &logctx.RunData{RunRef: st.RunRef, Seed: st.Seed, Turn: st.Turn})
	s.log.InfoContext(ctx, "gamesvc.end_run.ok", "reason", string(ended.Reason))

	worldName := scenario.WorldName(st.Settings.Genre, st.Settings.TemplateID)
	result := EndRunResult{
		TurnsSurvived:   st.Turn,
		ItemsFound:      len(st.ItemsFound),
		ThreatsDefeated: st.ThreatsDefeated,
		ProgressReached: st.Progress,
		Rating:          RatingView{Stars: ended.Rating.Stars, Title: ended.Rating.Title},
		Seed:            st.Seed,
	}
	meta := &mcp.CallToolResult{Meta: map[string]any{
		"openai/outputTemplate": "EndRunCard",
		"runRef":                st.RunRef,
		"endingNarrative":       ended.Narrative,
		"itemsList":             st.ItemsFound,
		"shareText":             seedcodec.ShareText(st.Seed, worldName, st.Turn),
	}}
	return meta, result, nil
}

// ExportChallengeInput asks for a shareable challenge.
type ExportChallengeInput struct {
	RunRef string `json:"runRef" jsonschema:"run reference from start_run"`
}

// ExportChallengeResult carries the seed and formatted share text.
type ExportChallengeResult struct {
	Seed      string `json:"seed"`
	ShareText string `json:"shareText"`
}

func (s *Service) handleExportChallenge(ctx context.Context, _ *mcp.CallToolRequest, in ExportChallengeInput) (*mcp.CallToolResult, ExportChallengeResult, error) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: "export_challenge"})

	if in.RunRef == "" {
		return nil, ExportChallengeResult{}, fmt.Errorf("runRef is required")
	}

	st, err := s.engine.Get(ctx, in.RunRef)
	if err != nil {
		return nil, ExportChallengeResult{}, err
	}

	worldName := scenario.WorldName(st.Settings.Genre, st.Settings.TemplateID)
	result := ExportChallengeResult{
		Seed:      st.Seed,
		ShareText: seedcodec.ShareText(st.Seed, worldName, st.Turn),
	}
	return nil, result, nil
}
