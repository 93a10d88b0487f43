// Package ratelimit throttles abusive traffic by counting requests per
// client fingerprint across several fixed windows with independent
// ceilings. Counters live behind the CounterStore interface so a single
// instance can run in memory and a fleet can share Redis.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/apprendo/apprendo/pkg/debug"
	"github.com/apprendo/apprendo/pkg/observability"
	"github.com/apprendo/apprendo/pkg/principal"
)

// ErrRateLimited is returned when any window's ceiling is exceeded.
var ErrRateLimited = errors.New("too many requests")

// Window is one throttling tier: at most Limit requests per Interval.
type Window struct {
	Name     string
	Interval time.Duration
	Limit    int64
}

// DefaultWindows returns the standard three-tier configuration.
func DefaultWindows() []Window {
	return []Window{
		{Name: "short", Interval: time.Second, Limit: 10},
		{Name: "medium", Interval: time.Minute, Limit: 100},
		{Name: "long", Interval: 15 * time.Minute, Limit: 500},
	}
}

// CounterStore tracks per-key request counts. Increment atomically adds
// one to the counter for key within the given window and returns the
// new count, creating the counter lazily.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ErrorWriter renders the 429 rejection. The transport layer wires in
// its error classifier here.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Limiter enforces the window ceilings with route and caller bypasses.
type Limiter struct {
	store        CounterStore
	windows      []Window
	bypassPaths  map[string]bool
	benignAgents []string
	logger       *slog.Logger
}

// DefaultBypassPaths lists paths that are never throttled.
var DefaultBypassPaths = []string{"/health", "/api/health"}

// NewLimiter creates a Limiter over the given counter store. Nil
// windows means DefaultWindows. benignAgents are lowercase substrings
// of user-agents exempt from throttling (monitoring crawlers).
func NewLimiter(store CounterStore, windows []Window, bypassPaths, benignAgents []string, logger *slog.Logger) *Limiter {
	if windows == nil {
		windows = DefaultWindows()
	}
	if bypassPaths == nil {
		bypassPaths = DefaultBypassPaths
	}
	if logger == nil {
		logger = slog.Default()
	}
	bypass := make(map[string]bool, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = true
	}
	lowered := make([]string, 0, len(benignAgents))
	for _, a := range benignAgents {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			lowered = append(lowered, a)
		}
	}
	return &Limiter{
		store:        store,
		windows:      windows,
		bypassPaths:  bypass,
		benignAgents: lowered,
		logger:       logger,
	}
}

// Allow counts the request against every window and reports whether it
// may proceed. Each window is incremented exactly once per request even
// when an earlier window already rejected, so ceilings stay accurate.
func (l *Limiter) Allow(ctx context.Context, r *http.Request) error {
	if l.skip(r) {
		debug.Log("ratelimit", "request exempt", "path", r.URL.Path)
		return nil
	}

	fp := Fingerprint(ClientIP(r), r.UserAgent())
	debug.Trace("ratelimit", "counting request", "fingerprint", fp, "path", r.URL.Path)

	var rejected *Window
	for i := range l.windows {
		w := &l.windows[i]
		count, err := l.store.Increment(ctx, w.Name+":"+fp, w.Interval)
		if err != nil {
			// Fail open: a broken counter store must not take the
			// service down with it.
			l.logger.Error("rate limit counter unavailable", "window", w.Name, "error", err)
			continue
		}
		if count > w.Limit && rejected == nil {
			rejected = w
		}
	}

	if rejected != nil {
		l.logger.Warn("rate limit exceeded",
			"fingerprint", fp,
			"window", rejected.Name,
			"path", r.URL.Path,
		)
		observability.RateLimitRejectedTotal.WithLabelValues(rejected.Name).Inc()
		return ErrRateLimited
	}
	return nil
}

// skip applies the bypass rules: health paths, ADMIN principals already
// resolved by the authentication guard, and benign monitoring agents.
func (l *Limiter) skip(r *http.Request) bool {
	if l.bypassPaths[r.URL.Path] {
		return true
	}
	if p := principal.FromContext(r.Context()); p != nil && p.IsAdmin() {
		return true
	}
	if len(l.benignAgents) > 0 {
		ua := strings.ToLower(r.UserAgent())
		for _, benign := range l.benignAgents {
			if strings.Contains(ua, benign) {
				return true
			}
		}
	}
	return false
}

// Middleware rejects over-limit requests with the given error writer.
func (l *Limiter) Middleware(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := l.Allow(r.Context(), r); err != nil {
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
