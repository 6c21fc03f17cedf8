// Package gamesvc exposes the run engine as MCP tools: list_templates,
// start_run, act, end_run, and export_challenge. Tool results carry a
// concise structured payload for the calling model plus widget-only
// metadata under the result Meta.
package gamesvc

import (
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gamefactory/gamefactory-go/engine"
	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/internal/ratelimit"
	"github.com/gamefactory/gamefactory-go/scenario"
)

// limiterKey identifies the caller for rate limiting. Stdio transports
// carry no client identity, so all callers share one budget.
const limiterKey = "default"

// Service wires the engine and template library into MCP tool handlers.
type Service struct {
	engine  *engine.Engine
	library *scenario.Library
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithLimiter replaces the default rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// New returns a tool service over the given engine and library.
func New(eng *engine.Engine, library *scenario.Library, opts ...Option) *Service {
	s := &Service{
		engine:  eng,
		library: library,
		limiter: ratelimit.New(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds every tool to the server.
func (s *Service) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_templates",
		Description: "Browse available curated game templates. Returns template summaries for selection.",
	}, s.handleListTemplates)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_run",
		Description: "Start a new game run. Returns the first scene with choices.",
	}, s.handleStartRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "act",
		Description: "Apply a player choice or consequence. Server determines success/failure.",
	}, s.handleAct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_run",
		Description: "End a game run and get the final summary with stats and shareable seed.",
	}, s.handleEndRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_challenge",
		Description: "Get a shareable seed code and challenge text for the current or completed run.",
	}, s.handleExportChallenge)
}

// allow enforces a rate-limit rule, returning a caller-visible error on
// rejection.
func (s *Service) allow(rule ratelimit.Rule) error {
	if s.limiter.Allow(limiterKey, rule) {
		return nil
	}
	resetAt := s.limiter.ResetAt(limiterKey, rule)
	return fmt.Errorf("rate limit exceeded for %s; window resets at %s", rule.Name, resetAt.Format("15:04:05 MST"))
}

// formatCost renders a cost for the model-facing choice list.
func formatCost(cost *game.Cost) string {
	if cost == nil || cost.Amount == 0 {
		return ""
	}
	switch cost.Kind {
	case game.CostHP:
		return fmt.Sprintf("%d HP", cost.Amount)
	case game.CostSupplies:
		return fmt.Sprintf("%d supply", cost.Amount)
	case game.CostTurn:
		return fmt.Sprintf("%d turn", cost.Amount)
	case game.CostThreat:
		return "raises threat"
	case game.CostItem:
		return "uses item"
	default:
		return string(cost.Kind)
	}
}

func choiceViews(choices []game.Choice) []ChoiceView {
	out := make([]ChoiceView, len(choices))
	for i, c := range choices {
		out[i] = ChoiceView{
			ID:    c.ID,
			Label: c.Label,
			Risk:  c.Risk,
			Cost:  formatCost(c.Cost),
		}
	}
	return out
}

// lastChange summarizes the most recent event for the model.
func lastChange(st *game.State) string {
	if n := len(st.EventsLog); n > 0 {
		return st.EventsLog[n-1]
	}
	return "Progressed"
}

// outputTemplate maps the run format to its widget card.
func outputTemplate(format game.Format) string {
	switch format {
	case game.FormatArcade:
		return "ArcadeCard"
	case game.FormatPuzzle:
		return "PuzzleCard"
	default:
		return "SceneCard"
	}
}
