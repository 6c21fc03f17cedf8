package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gamefactory/gamefactory-go/game"
	"github.com/gamefactory/gamefactory-go/safety"
)

// ErrNoTemplates is returned by Random when the library is empty.
var ErrNoTemplates = errors.New("scenario: no templates available")

// Library is the template-backed Provider. With no templates loaded it
// serves the builtin genre scenes, so a zero-configuration deployment
// still plays.
type Library struct {
	log *slog.Logger

	mu        sync.RWMutex
	dir       string
	templates map[string]*game.Template
}

// LibraryOption customizes a Library.
type LibraryOption func(*Library)

// WithLogger sets the logger used for load and watch diagnostics.
func WithLogger(log *slog.Logger) LibraryOption {
	return func(l *Library) { l.log = log }
}

// NewLibrary returns an empty library.
func NewLibrary(opts ...LibraryOption) *Library {
	l := &Library{
		log:       slog.Default(),
		templates: make(map[string]*game.Template),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDir scans dir recursively for *.json templates and replaces the
// current set. Files that fail to parse or lack an id are skipped and
// logged, never fatal.
func (l *Library) LoadDir(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("templates root: %w", err)
	}

	loaded := make(map[string]*game.Template)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			l.log.WarnContext(ctx, "scenario.template.read_failed",
				slog.String("path", path), slog.String("err", err.Error()))
			return nil
		}
		var tpl game.Template
		if err := json.Unmarshal(raw, &tpl); err != nil {
			l.log.WarnContext(ctx, "scenario.template.parse_failed",
				slog.String("path", path), slog.String("err", err.Error()))
			return nil
		}
		if tpl.ID == "" {
			l.log.WarnContext(ctx, "scenario.template.missing_id", slog.String("path", path))
			return nil
		}
		if tpl.InitialScene != nil {
			tpl.InitialScene.Narrative = safety.Soften(tpl.InitialScene.Narrative)
		}
		loaded[tpl.ID] = &tpl
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("templates walk: %w", walkErr)
	}

	l.mu.Lock()
	l.dir = dir
	l.templates = loaded
	l.mu.Unlock()

	l.log.InfoContext(ctx, "scenario.templates.loaded",
		slog.String("dir", dir), slog.Int("count", len(loaded)))
	return nil
}

// Watch reloads the template directory whenever fsnotify reports a change
// under it. It blocks until ctx is cancelled; callers run it on its own
// goroutine. Watching is best-effort: if fsnotify is unavailable the
// library simply keeps its last loaded set.
func (l *Library) Watch(ctx context.Context) {
	l.mu.RLock()
	dir := l.dir
	l.mu.RUnlock()
	if dir == "" {
		return
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.DebugContext(ctx, "scenario.watch.unavailable", slog.String("err", err.Error()))
		return
	}
	defer func() {
		_ = w.Close()
	}()

	addDirs := func() {
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			return w.Add(p)
		})
	}
	addDirs()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New subdirectories need their own watch before reload.
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					addDirs()
				}
			}
			if err := l.LoadDir(ctx, dir); err != nil {
				l.log.WarnContext(ctx, "scenario.watch.reload_failed", slog.String("err", err.Error()))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.log.DebugContext(ctx, "scenario.watch.error", slog.String("err", err.Error()))
		}
	}
}

// Len reports how many templates are loaded.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// Get returns the template with the given id.
func (l *Library) Get(id string) (*game.Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tpl, ok := l.templates[id]
	return tpl, ok
}

// List returns all templates ordered by id.
func (l *Library) List() []*game.Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*game.Template, 0, len(l.templates))
	for _, tpl := range l.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Filter returns templates matching the given genre (empty matches all)
// and, when featuredOnly is set, only featured ones. Ordered by id.
func (l *Library) Filter(genre game.Genre, featuredOnly bool) []*game.Template {
	all := l.List()
	out := all[:0]
	for _, tpl := range all {
		if genre != "" && tpl.Genre != genre {
			continue
		}
		if featuredOnly && !tpl.Featured {
			continue
		}
		out = append(out, tpl)
	}
	return out
}

// Random picks one loaded template uniformly.
func (l *Library) Random() (*game.Template, error) {
	all := l.List()
	if len(all) == 0 {
		return nil, ErrNoTemplates
	}
	return all[rand.Intn(len(all))], nil
}

// InitialScene implements Provider. A template with its own opening scene
// overrides the builtin genre scene.
func (l *Library) InitialScene(settings game.Settings) game.Scene {
	if settings.TemplateID != "" {
		if tpl, ok := l.Get(settings.TemplateID); ok && tpl.InitialScene != nil {
			return tpl.InitialScene.Clone()
		}
	}
	return builtinScene(settings.Genre)
}

// NextScene implements Provider.
func (l *Library) NextScene(state *game.State, _ *game.Choice) game.Scene {
	return continuationScene(state)
}

// Discoveries implements Provider. Template encounter tables win over the
// builtin genre table.
func (l *Library) Discoveries(state *game.State) []string {
	if id := state.Settings.TemplateID; id != "" {
		if tpl, ok := l.Get(id); ok && len(tpl.Encounters.Discoveries) > 0 {
			return tpl.Encounters.Discoveries
		}
	}
	if items, ok := builtinDiscoveries[state.Settings.Genre]; ok {
		return items
	}
	return builtinDiscoveries[game.GenreFantasy]
}
