package gamesvc

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gamefactory/gamefactory-go/engine"
	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/internal/ratelimit"
	"github.com/gamefactory/gamefactory-go/runstore/memory"
	"github.com/gamefactory/gamefactory-go/safety"
	"github.com/gamefactory/gamefactory-go/scenario"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store, *scenario.Library) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	lib := scenario.NewLibrary()
	return New(engine.New(store, lib), lib, opts...), store, lib
}

func intPtr(v int) *int { return &v }

// seedRun plants a run with a controlled scene: "safe" always succeeds,
// "doomed" (risk 0) always fails at normal difficulty.
func seedRun(t *testing.T, store *memory.Store, st *game.State) *game.State {
	t.Helper()
	if st == nil {
		st = &game.State{}
	}
	if st.RunRef == "" {
		st.RunRef = "run-svc-test"
	}
	if st.Seed == "" {
		st.Seed = "GF-FAN-L-M-SVCT"
	}
	if st.Turn == 0 {
		st.Turn = 1
	}
	if st.HP == 0 {
		st.HP = 10
	}
	if st.MaxHP == 0 {
		st.MaxHP = 10
	}
	if st.Supplies == 0 {
		st.Supplies = 5
	}
	if st.MaxSupplies == 0 {
		st.MaxSupplies = 10
	}
	if st.MaxInventory == 0 {
		st.MaxInventory = 8
	}
	if st.Settings.Genre == "" {
		st.Settings = game.Settings{
			Genre: game.GenreFantasy, Tone: game.ToneSerious,
			Length: game.LengthMedium, Difficulty: game.DifficultyNormal,
			Format: game.FormatQuest,
		}
	}
	if st.Status == "" {
		st.Status = game.StatusAwaitingChoice
	}
	if st.ThreatLevel == "" {
		st.ThreatLevel = game.ThreatLow
	}
	if len(st.Scene.Choices) == 0 {
		st.Scene = game.Scene{
			ChapterID: 1,
			Title:     "Test Scene",
			Narrative: "A narrow corridor stretches ahead.",
			Choices: []game.Choice{
				{ID: "safe", Label: "Take the safe path", Risk: nil},
				{ID: "doomed", Label: "Force the lock", Risk: intPtr(0)},
			},
		}
	}
	if err := store.Create(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	return st
}

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListTemplates(t *testing.T) {
	s, _, lib := newTestService(t)
	dir := t.TempDir()
	writeTemplate(t, dir, "a.json", `{"id": "a", "name": "Alpha", "genre": "fantasy", "difficulty": "easy", "featured": true}`)
	writeTemplate(t, dir, "b.json", `{"id": "b", "name": "Beta", "genre": "fantasy", "difficulty": "hard"}`)
	writeTemplate(t, dir, "c.json", `{"id": "c", "name": "Gamma", "genre": "mystery", "difficulty": "normal", "featured": true}`)
	if err := lib.LoadDir(context.Background(), dir); err != nil {
		t.Fatal(err)
	}

	result, out, err := s.handleListTemplates(context.Background(), &mcp.CallToolRequest{}, ListTemplatesInput{Genre: "fantasy"})
	if err != nil {
		t.Fatalf("list_templates: %v", err)
	}
	if out.Total != 2 || len(out.Templates) != 2 {
		t.Fatalf("total=%d templates=%d, want 2/2", out.Total, len(out.Templates))
	}
	if out.Templates[0].ID != "a" || out.Templates[0].Difficulty != "easy" {
		t.Errorf("first template = %+v", out.Templates[0])
	}
	if result.Meta["openai/outputTemplate"] != "TemplateShelf" {
		t.Errorf("outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}
	details, ok := result.Meta["templateDetails"].([]map[string]any)
	if !ok || len(details) != 2 {
		t.Fatalf("templateDetails = %v", result.Meta["templateDetails"])
	}
	if details[0]["name"] != "Alpha" {
		t.Errorf("detail name = %v", details[0]["name"])
	}

	// Limit truncates the page but not the reported total.
	_, out, err = s.handleListTemplates(context.Background(), &mcp.CallToolRequest{}, ListTemplatesInput{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 3 || len(out.Templates) != 1 {
		t.Errorf("limited page: total=%d returned=%d", out.Total, len(out.Templates))
	}

	_, out, err = s.handleListTemplates(context.Background(), &mcp.CallToolRequest{}, ListTemplatesInput{Featured: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 {
		t.Errorf("featured total = %d, want 2", out.Total)
	}
}

func TestStartRun(t *testing.T) {
	s, _, _ := newTestService(t)

	result, out, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{
		Genre:      "fantasy",
		Difficulty: "easy",
	})
	if err != nil {
		t.Fatalf("start_run: %v", err)
	}
	if out.RunRef == "" {
		t.Fatal("empty runRef")
	}
	if out.Turn != 1 || out.HP != 12 || out.Supplies != 7 {
		t.Errorf("opening state: turn=%d hp=%d supplies=%d", out.Turn, out.HP, out.Supplies)
	}
	if len(out.Choices) == 0 {
		t.Fatal("no choices in opening scene")
	}
	if out.SceneSummary != "The Awakening" {
		t.Errorf("sceneSummary = %q", out.SceneSummary)
	}

	if result.Meta["openai/outputTemplate"] != "SceneCard" {
		t.Errorf("outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}
	if result.Meta["runRef"] != out.RunRef {
		t.Errorf("meta runRef = %v, want %s", result.Meta["runRef"], out.RunRef)
	}
	if result.Meta["worldName"] != "The Ancient Realm" {
		t.Errorf("worldName = %v", result.Meta["worldName"])
	}
	seed, _ := result.Meta["seed"].(string)
	if !strings.HasPrefix(seed, "GF-FAN-") {
		t.Errorf("meta seed = %q", seed)
	}
	if narrative, _ := result.Meta["narrative"].(string); narrative == "" {
		t.Error("meta narrative is empty")
	}
}

func TestStartRunFormatSelectsCard(t *testing.T) {
	s, _, _ := newTestService(t)

	result, _, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{Format: "arcade"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Meta["openai/outputTemplate"] != "ArcadeCard" {
		t.Errorf("arcade outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}

	result, _, err = s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{Format: "puzzle"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Meta["openai/outputTemplate"] != "PuzzleCard" {
		t.Errorf("puzzle outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}
}

func TestStartRunTemplate(t *testing.T) {
	s, _, lib := newTestService(t)
	dir := t.TempDir()
	writeTemplate(t, dir, "glass-orchard.json", `{
  "id": "glass-orchard",
  "name": "The Glass Orchard",
  "genre": "mystery",
  "difficulty": "hard",
  "initialScene": {
    "chapterId": 1,
    "title": "The Conservatory",
    "narrative": "Frost patterns every pane.",
    "choices": [
      { "id": "c1", "label": "Inspect the soil", "risk": null, "cost": null }
    ]
  }
}`)
	if err := lib.LoadDir(context.Background(), dir); err != nil {
		t.Fatal(err)
	}

	result, out, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{TemplateID: "glass-orchard"})
	if err != nil {
		t.Fatalf("start_run with template: %v", err)
	}
	// Template fixes genre and default difficulty (hard: 8 HP, 4 supplies).
	if out.HP != 8 || out.Supplies != 4 {
		t.Errorf("template difficulty not applied: hp=%d supplies=%d", out.HP, out.Supplies)
	}
	if out.SceneSummary != "The Conservatory" {
		t.Errorf("sceneSummary = %q, want template scene", out.SceneSummary)
	}
	if result.Meta["worldName"] != "Glass Orchard" {
		t.Errorf("worldName = %v", result.Meta["worldName"])
	}

	// Explicit difficulty beats the template default.
	_, out, err = s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{TemplateID: "glass-orchard", Difficulty: "easy"})
	if err != nil {
		t.Fatal(err)
	}
	if out.HP != 12 {
		t.Errorf("explicit difficulty ignored: hp=%d", out.HP)
	}

	if _, _, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{TemplateID: "nope"}); err == nil {
		t.Error("unknown template accepted")
	}
}

func TestStartRunSurpriseUsesLibrary(t *testing.T) {
	s, _, lib := newTestService(t)
	dir := t.TempDir()
	writeTemplate(t, dir, "only.json", `{
  "id": "only",
  "name": "Only One",
  "genre": "sci-fi",
  "difficulty": "normal",
  "initialScene": {
    "chapterId": 1,
    "title": "Docking Bay",
    "narrative": "The airlock hisses open.",
    "choices": [{ "id": "c1", "label": "Step inside", "risk": null, "cost": null }]
  }
}`)
	if err := lib.LoadDir(context.Background(), dir); err != nil {
		t.Fatal(err)
	}

	_, out, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{Surprise: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.SceneSummary != "Docking Bay" {
		t.Errorf("surprise did not pick the lone template: scene = %q", out.SceneSummary)
	}
}

func TestStartRunPromptRejected(t *testing.T) {
	s, _, _ := newTestService(t)

	_, _, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{
		Genre:  "fantasy",
		Prompt: "a quest to summon a demon lord",
	})
	if !errors.Is(err, safety.ErrForbiddenContent) {
		t.Fatalf("err = %v, want forbidden content", err)
	}

	// Benign prompts pass through.
	if _, _, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{
		Genre:  "fantasy",
		Prompt: "a cozy quest about finding a lost cat",
	}); err != nil {
		t.Fatalf("benign prompt rejected: %v", err)
	}
}

func TestStartRunRateLimited(t *testing.T) {
	limiter := ratelimit.New()
	s, _, _ := newTestService(t, WithLimiter(limiter))

	for i := 0; i < ratelimit.StartRun.Max; i++ {
		if !limiter.Allow("default", ratelimit.StartRun) {
			t.Fatalf("budget exhausted early at %d", i)
		}
	}

	_, _, err := s.handleStartRun(context.Background(), &mcp.CallToolRequest{}, StartRunInput{Genre: "fantasy"})
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("err = %v, want rate limit rejection", err)
	}
}

func TestActValidation(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ActInput
	}{
		{"missing runRef", ActInput{ActionID: "safe", ClientTurn: 1}},
		{"missing actionId", ActInput{RunRef: "run-x", ClientTurn: 1}},
		{"zero clientTurn", ActInput{RunRef: "run-x", ActionID: "safe"}},
	}
	for _, tc := range cases {
		if _, _, err := s.handleAct(ctx, &mcp.CallToolRequest{}, tc.in); err == nil {
			t.Errorf("%s: accepted", tc.name)
		}
	}

	_, _, err := s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: "run-missing", ActionID: "safe", ClientTurn: 1})
	if !errors.Is(err, engine.ErrRunNotFound) {
		t.Errorf("missing run: err = %v", err)
	}
}

func TestActSuccessAndOutOfSync(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	st := seedRun(t, store, nil)

	result, out, err := s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: st.RunRef, ActionID: "safe", ClientTurn: 1})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if out.Outcome != "success" {
		t.Fatalf("outcome = %q", out.Outcome)
	}
	if out.Turn != 2 {
		t.Errorf("turn = %d, want 2", out.Turn)
	}
	if out.Changes == "" || !strings.Contains(out.Changes, "Take the safe path") {
		t.Errorf("changes = %q", out.Changes)
	}
	if len(out.Choices) == 0 || out.SceneSummary == "" {
		t.Errorf("missing next scene: choices=%d summary=%q", len(out.Choices), out.SceneSummary)
	}
	if result.Meta["openai/outputTemplate"] != "SceneCard" {
		t.Errorf("outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}

	// Replaying the same clientTurn refreshes instead of double-applying.
	result, out, err = s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: st.RunRef, ActionID: "safe", ClientTurn: 1})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.Outcome != "out_of_sync" {
		t.Fatalf("retry outcome = %q", out.Outcome)
	}
	if out.CurrentTurn != 2 {
		t.Errorf("currentTurn = %d, want 2", out.CurrentTurn)
	}
	if out.Message != "Action already applied, refreshing state" {
		t.Errorf("message = %q", out.Message)
	}
	if result.Meta["runRef"] != st.RunRef {
		t.Errorf("meta runRef = %v", result.Meta["runRef"])
	}
}

// A choice cost can drain hp to zero on the success path; the serialized
// result must still carry the zero instead of dropping the field.
func TestActSuccessSerializesZeroHP(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	st := seedRun(t, store, &game.State{
		HP: 1,
		Scene: game.Scene{
			ChapterID: 1,
			Title:     "Test Scene",
			Choices: []game.Choice{
				{ID: "costly", Label: "Push the slab aside", Cost: &game.Cost{Kind: game.CostHP, Amount: 1}},
			},
		},
	})

	_, out, err := s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: st.RunRef, ActionID: "costly", ClientTurn: 1})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if out.Outcome != "success" || out.HP != 0 {
		t.Fatalf("outcome = %q hp = %d, want success with hp 0", out.Outcome, out.HP)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"hp":0`, `"supplies":`, `"invCount":0`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("serialized result %s missing %s", raw, field)
		}
	}
}

func TestActFailureAndConsequence(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	st := seedRun(t, store, nil)

	result, out, err := s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: st.RunRef, ActionID: "doomed", ClientTurn: 1})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if out.Outcome != "pending_consequence" {
		t.Fatalf("outcome = %q", out.Outcome)
	}
	if len(out.Consequences) != 3 {
		t.Fatalf("offered %d consequences, want 3", len(out.Consequences))
	}
	if out.FailureSummary != "Action failed, choose consequence" {
		t.Errorf("failureSummary = %q", out.FailureSummary)
	}
	if result.Meta["openai/outputTemplate"] != "ConsequenceCard" {
		t.Errorf("outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}
	if narrative, _ := result.Meta["failureNarrative"].(string); narrative == "" {
		t.Error("failureNarrative is empty")
	}

	// Resolving the consequence advances the run.
	_, out, err = s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: st.RunRef, ActionID: out.Consequences[0].ID, ClientTurn: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Outcome != "success" {
		t.Fatalf("resolve outcome = %q", out.Outcome)
	}
	if out.Turn != 2 {
		t.Errorf("turn after consequence = %d", out.Turn)
	}
}

func TestActRunEnded(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	st := seedRun(t, store, &game.State{Progress: 96})

	result, out, err := s.handleAct(ctx, &mcp.CallToolRequest{}, ActInput{RunRef: st.RunRef, ActionID: "safe", ClientTurn: 1})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if out.Outcome != "run_ended" {
		t.Fatalf("outcome = %q", out.Outcome)
	}
	if out.Reason != "victory" {
		t.Errorf("reason = %q", out.Reason)
	}
	if out.EndingSummary != "Run completed: victory" {
		t.Errorf("endingSummary = %q", out.EndingSummary)
	}
	if result.Meta["openai/outputTemplate"] != "EndRunCard" {
		t.Errorf("outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}
	if narrative, _ := result.Meta["endingNarrative"].(string); narrative == "" {
		t.Error("endingNarrative is empty")
	}
}

func TestEndRun(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	st := seedRun(t, store, &game.State{Turn: 4, Progress: 30, ItemsFound: []string{"Healing Herb"}})

	result, out, err := s.handleEndRun(ctx, &mcp.CallToolRequest{}, EndRunInput{RunRef: st.RunRef, Reason: "escape"})
	if err != nil {
		t.Fatalf("end_run: %v", err)
	}
	if out.TurnsSurvived != 4 || out.ItemsFound != 1 || out.ProgressReached != 30 {
		t.Errorf("summary = %+v", out)
	}
	if out.Rating.Stars < 1 || out.Rating.Title == "" {
		t.Errorf("rating = %+v", out.Rating)
	}
	if out.Seed != st.Seed {
		t.Errorf("seed = %q, want %q", out.Seed, st.Seed)
	}
	if result.Meta["openai/outputTemplate"] != "EndRunCard" {
		t.Errorf("outputTemplate = %v", result.Meta["openai/outputTemplate"])
	}
	share, _ := result.Meta["shareText"].(string)
	if !strings.Contains(share, st.Seed) || !strings.Contains(share, "The Ancient Realm") {
		t.Errorf("shareText = %q", share)
	}

	if _, _, err := s.handleEndRun(ctx, &mcp.CallToolRequest{}, EndRunInput{RunRef: st.RunRef, Reason: "rage-quit"}); err == nil {
		t.Error("invalid reason accepted")
	}
	if _, _, err := s.handleEndRun(ctx, &mcp.CallToolRequest{}, EndRunInput{Reason: "escape"}); err == nil {
		t.Error("missing runRef accepted")
	}
	if _, _, err := s.handleEndRun(ctx, &mcp.CallToolRequest{}, EndRunInput{RunRef: "run-missing", Reason: "escape"}); !errors.Is(err, engine.ErrRunNotFound) {
		t.Errorf("missing run: err = %v", err)
	}
}

func TestExportChallenge(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	st := seedRun(t, store, &game.State{Turn: 7})

	result, out, err := s.handleExportChallenge(ctx, &mcp.CallToolRequest{}, ExportChallengeInput{RunRef: st.RunRef})
	if err != nil {
		t.Fatalf("export_challenge: %v", err)
	}
	if result != nil {
		t.Errorf("unexpected meta result: %+v", result)
	}
	if out.Seed != st.Seed {
		t.Errorf("seed = %q", out.Seed)
	}
	if !strings.Contains(out.ShareText, "I survived 7 turns") {
		t.Errorf("shareText = %q", out.ShareText)
	}

	if _, _, err := s.handleExportChallenge(ctx, &mcp.CallToolRequest{}, ExportChallengeInput{}); err == nil {
		t.Error("missing runRef accepted")
	}
	if _, _, err := s.handleExportChallenge(ctx, &mcp.CallToolRequest{}, ExportChallengeInput{RunRef: "run-missing"}); !errors.Is(err, engine.ErrRunNotFound) {
		t.Errorf("missing run: err = %v", err)
	}
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

// TestServerRoundTrip drives the registered tools over an in-memory MCP
// transport, exercising the full request path a client would take.
func TestServerRoundTrip(t *testing.T) {
	s, _, _ := newTestService(t)

	server := mcp.NewServer(&mcp.Implementation{Name: "gamefactory", Version: "test"}, nil)
	s.Register(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer clientCancel()

	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	startResult, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name: "start_run",
		Arguments: map[string]any{
			"genre":      "fantasy",
			"difficulty": "normal",
		},
	})
	if err != nil {
		t.Fatalf("call start_run: %v", err)
	}
	if startResult == nil || startResult.IsError {
		t.Fatalf("start_run failed: %+v", startResult)
	}
	start := decodeStructuredContent[StartRunResult](t, startResult.StructuredContent)
	if start.RunRef == "" || len(start.Choices) == 0 {
		t.Fatalf("start_run output = %+v", start)
	}

	// The first builtin fantasy choice has no risk, so acting on it always
	// succeeds.
	actResult, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name: "act",
		Arguments: map[string]any{
			"runRef":     start.RunRef,
			"actionId":   start.Choices[0].ID,
			"clientTurn": start.Turn,
		},
	})
	if err != nil {
		t.Fatalf("call act: %v", err)
	}
	if actResult == nil || actResult.IsError {
		t.Fatalf("act failed: %+v", actResult)
	}
	act := decodeStructuredContent[ActResult](t, actResult.StructuredContent)
	if act.Outcome != "success" || act.Turn != 2 {
		t.Fatalf("act output = %+v", act)
	}

	endResult, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name: "end_run",
		Arguments: map[string]any{
			"runRef": start.RunRef,
			"reason": "abandon",
		},
	})
	if err != nil {
		t.Fatalf("call end_run: %v", err)
	}
	if endResult == nil || endResult.IsError {
		t.Fatalf("end_run failed: %+v", endResult)
	}
	end := decodeStructuredContent[EndRunResult](t, endResult.StructuredContent)
	if end.TurnsSurvived != 2 || end.Seed == "" {
		t.Fatalf("end_run output = %+v", end)
	}

	cancel()
	select {
	case <-serveErr:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
