// Package logctx enriches slog records with request-scoped run and tool
// attributes carried on the context, so every log line emitted under a
// tool call identifies which run and operation produced it.
package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(runDataKey{}).(*RunData); ok {
		r.AddAttrs(slog.Group("run",
			slog.String("ref", rd.RunRef),
			slog.String("seed", rd.Seed),
			slog.Int("turn", rd.Turn),
		))
	}

	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		r.AddAttrs(slog.Group("tool",
			slog.String("name", td.ToolName),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type runDataKey struct{}

type RunData struct {
	RunRef string
	Seed   string
	Turn   int
}

func WithRunData(ctx context.Context, data *RunData) context.Context {
	return context.WithValue(ctx, runDataKey{}, data)
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}
