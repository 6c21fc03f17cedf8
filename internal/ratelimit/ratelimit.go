// Package ratelimit is a small fixed-window request limiter for the tool
// surface. Windows are tracked in process memory per (key, rule) pair;
// stdio deployments typically see a single key.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Rule names one limited operation class and its budget per window.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
}

// Budgets for the two mutating tool classes.
var (
	StartRun = Rule{Name: "start_run", Max: 10, Window: time.Hour}
	Act      = Rule{Name: "act", Max: 100, Window: time.Hour}
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter tracks usage windows. The zero value is not usable; call New.
type Limiter struct {
	mu    sync.Mutex
	usage map[string]*window
	now   func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns an empty limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		usage: make(map[string]*window),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request against the rule's window for key and reports
// whether it fits the budget. A denied request does not consume budget.
func (l *Limiter) Allow(key string, rule Rule) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	composite := fmt.Sprintf("%s:%s", key, rule.Name)

	w, ok := l.usage[composite]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rule.Window)}
		l.usage[composite] = w
	}

	if w.count >= rule.Max {
		return false
	}
	w.count++
	return true
}

// ResetAt returns when the current window for (key, rule) expires, or the
// zero time if none is open.
func (l *Limiter) ResetAt(key string, rule Rule) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.usage[fmt.Sprintf("%s:%s", key, rule.Name)]; ok {
		return w.resetAt
	}
	return time.Time{}
}

// Reset drops all tracked windows.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage = make(map[string]*window)
}
