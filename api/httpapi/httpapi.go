// Package httpapi exposes the achievement engine over REST plus a WebSocket
// event stream.
package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "achievekit/adapters/websocket"
	"achievekit/core"
	"achievekit/engine"
	"achievekit/leaderboard"
	"achievekit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
}

// NewMux builds an http.Handler exposing the achievement REST API and
// WebSocket stream.
// Routes:
//   - POST {prefix}/saves/{id}/progress?key=battles_won&delta=1
//   - PUT  {prefix}/saves/{id}/progress?key=battles_won&value=10
//   - POST {prefix}/saves/{id}/achievements/{aid}/claim
//   - POST {prefix}/saves/{id}/collections/{cid}/items/{iid}/collect
//   - GET  {prefix}/saves/{id}/achievements
//   - GET  {prefix}/saves/{id}/collections
//   - GET  {prefix}/saves/{id}
//   - GET  {prefix}/leaderboard?n=10
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws?save={id}
func NewMux(eng *engine.Engine, hub *realtime.Hub, board leaderboard.Board, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, eng)
	})

	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	if board != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
				return
			}
			n := 10
			if raw := r.URL.Query().Get("n"); raw != "" {
				parsed, err := strconv.Atoi(raw)
				if err != nil || parsed <= 0 {
					writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
					return
				}
				n = parsed
			}
			writeJSON(w, map[string]any{"entries": board.TopN(n)})
		})
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/saves/"), func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		if path == "" || path[0] != '/' {
			path = "/" + path
		}
		parts := split(path, '/')
		if len(parts) < 2 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		save, err := core.NormalizeSaveID(core.SaveID(parts[1]))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_save", err.Error(), nil)
			return
		}
		handleSave(w, r, eng, save, parts[2:])
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

// handleSave routes everything below /saves/{id}. Rest holds the path
// segments after the save id.
func handleSave(w http.ResponseWriter, r *http.Request, eng *engine.Engine, save core.SaveID, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		writeJSON(w, map[string]any{
			"save":         save,
			"score":        eng.Score(ctx, save),
			"achievements": eng.Achievements(ctx, save),
			"collections":  eng.Collections(ctx, save),
		})
		return
	}

	switch rest[0] {
	case "progress":
		key := core.CounterKey(r.URL.Query().Get("key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "invalid_key", "key is required", nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			delta, err := strconv.ParseInt(r.URL.Query().Get("delta"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_delta", "delta must be an integer", nil)
				return
			}
			value := eng.ReportProgress(ctx, save, key, delta)
			writeJSON(w, map[string]any{"key": key, "value": value})
			return
		case http.MethodPut:
			value, err := strconv.ParseInt(r.URL.Query().Get("value"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_value", "value must be an integer", nil)
				return
			}
			previous := eng.SetProgress(ctx, save, key, value)
			writeJSON(w, map[string]any{"key": key, "previous": previous, "value": eng.Counter(ctx, save, key)})
			return
		}

	case "achievements":
		if r.Method == http.MethodGet && len(rest) == 1 {
			writeJSON(w, map[string]any{"achievements": eng.Achievements(ctx, save)})
			return
		}
		if r.Method == http.MethodPost && len(rest) == 3 && rest[2] == "claim" {
			eng.ClaimAchievement(ctx, save, rest[1])
			writeJSON(w, map[string]any{"ok": true})
			return
		}

	case "collections":
		if r.Method == http.MethodGet && len(rest) == 1 {
			writeJSON(w, map[string]any{"collections": eng.Collections(ctx, save)})
			return
		}
		if r.Method == http.MethodPost && len(rest) == 5 && rest[2] == "items" && rest[4] == "collect" {
			eng.CollectItem(ctx, save, rest[1], rest[3])
			writeJSON(w, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
}

// Helpers

// healthCheck probes the engine with a throwaway read.
func healthCheck(w http.ResponseWriter, r *http.Request, eng *engine.Engine) {
	_ = eng.Counter(r.Context(), "healthcheck_probe", "healthcheck")

	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"engine": "ok",
		},
	})
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
