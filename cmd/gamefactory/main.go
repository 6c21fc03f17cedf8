// Command gamefactory serves the game-run MCP tools over stdio or
// streamable HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"

	"github.com/gamefactory/gamefactory-go/engine"
	"github.com/gamefactory/gamefactory-go/gamesvc"
	"github.com/gamefactory/gamefactory-go/internal/httpauth"
	"github.com/gamefactory/gamefactory-go/internal/logctx"
	"github.com/gamefactory/gamefactory-go/runstore"
	"github.com/gamefactory/gamefactory-go/runstore/memory"
	"github.com/gamefactory/gamefactory-go/runstore/redisstore"
	"github.com/gamefactory/gamefactory-go/scenario"
)

var version = "dev"

// Config is populated from the environment via envdecode.
type Config struct {
	// Transport selects "stdio" or "http".
	Transport string `env:"GAMEFACTORY_TRANSPORT,default=stdio"`

	// HTTPAddr is the listen address for the http transport.
	HTTPAddr string `env:"GAMEFACTORY_HTTP_ADDR,default=127.0.0.1:8080"`

	// HTTPSecret enables bearer-token auth on the http transport when set.
	HTTPSecret string `env:"GAMEFACTORY_HTTP_SECRET"`

	// RedisAddr switches run storage from in-process memory to Redis.
	RedisAddr string `env:"REDIS_ADDR"`

	// TemplatesDir is watched for curated template JSON files.
	TemplatesDir string `env:"GAMEFACTORY_TEMPLATES_DIR"`

	// RunTTL is the idle eviction window for runs.
	RunTTL time.Duration `env:"GAMEFACTORY_RUN_TTL,default=4h"`

	// SweepInterval controls how often the memory store evicts idle runs.
	SweepInterval time.Duration `env:"GAMEFACTORY_SWEEP_INTERVAL,default=30m"`

	LogLevel  string `env:"GAMEFACTORY_LOG_LEVEL,default=info"`
	LogFormat string `env:"GAMEFACTORY_LOG_FORMAT,default=json"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gamefactory:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	// Every field has a default, so a bare environment is fine.
	_ = envdecode.Decode(&cfg)

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	library := scenario.NewLibrary(scenario.WithLogger(log))
	if cfg.TemplatesDir != "" {
		if err := library.LoadDir(ctx, cfg.TemplatesDir); err != nil {
			log.Warn("templates.load_failed", "dir", cfg.TemplatesDir, "err", err)
		}
		go library.Watch(ctx)
	}

	eng := engine.New(store, library, engine.WithLogger(log))
	svc := gamesvc.New(eng, library, gamesvc.WithLogger(log))

	server := mcp.NewServer(&mcp.Implementation{Name: "gamefactory", Version: version}, nil)
	svc.Register(server)

	log.Info("gamefactory.starting",
		"version", version,
		"transport", cfg.Transport,
		"templates", library.Len(),
	)

	switch cfg.Transport {
	case "stdio":
		return runStdio(ctx, server)
	case "http":
		return runHTTP(ctx, cfg, server, log)
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	// Stdout carries the stdio transport; logs always go to stderr.
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if cfg.LogFormat == "text" {
		inner = slog.NewTextHandler(os.Stderr, opts)
	} else {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(logctx.Handler{Handler: inner})
}

func newStore(ctx context.Context, cfg Config, log *slog.Logger) (runstore.Store, error) {
	if cfg.RedisAddr == "" {
		store := memory.New(
			memory.WithTTL(cfg.RunTTL),
			memory.WithSweepInterval(cfg.SweepInterval),
			memory.WithLogger(log),
		)
		store.Start()
		return store, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("runstore.redis", "addr", cfg.RedisAddr)
	return redisstore.New(redisstore.Config{Client: client, TTL: cfg.RunTTL})
}

func runStdio(ctx context.Context, server *mcp.Server) error {
	err := server.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func runHTTP(ctx context.Context, cfg Config, server *mcp.Server, log *slog.Logger) error {
	var handler http.Handler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	if cfg.HTTPSecret != "" {
		authn, err := httpauth.New(cfg.HTTPSecret)
		if err != nil {
			return err
		}
		handler = authn.Middleware(handler)
	} else {
		log.Warn("http.auth_disabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("http.stopped")
	return nil
}
