// Package sandbox is an in-memory implementation of the WiseFood REST API
// used for local development and for the SDK's mock mode.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// DefaultPrefix is the API root the sandbox serves under.
const DefaultPrefix = "/api/v1"

const helpURL = "https://wisefood.example/docs/errors"

// FailConfig injects failures into a fraction of requests.
type FailConfig struct {
	Rate float64
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<status>". An empty string
// disables injection; code defaults to 500.
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return FailConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return FailConfig{}, err
			}
			cfg.Rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return FailConfig{}, err
			}
			cfg.Code = val
		default:
			return FailConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}

// Server serves the sandbox API.
type Server struct {
	store    *Store
	logger   zerolog.Logger
	prefix   string
	latency  time.Duration
	fail     FailConfig
	tokenTTL time.Duration
	chance   func() float64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = "/" + strings.Trim(prefix, "/") }
}

// WithLatency delays every request.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithFailures enables failure injection.
func WithFailures(cfg FailConfig) Option {
	return func(s *Server) { s.fail = cfg }
}

// WithTokenTTL sets the lifetime reported for issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// New builds a server over store.
func New(store *Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		logger:   zerolog.Nop(),
		prefix:   DefaultPrefix,
		tokenTTL: time.Hour,
		chance:   rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests, s.inject)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "resource/not_found", "Not Found", "no route for "+r.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "request/not_allowed", "Method Not Allowed", r.Method+" not allowed", nil)
	})

	r.Route(s.prefix, func(r chi.Router) {
		r.Post("/system/login", s.login)
		r.Post("/system/mtm", s.mtm)
		r.Get("/system/ping", s.ping)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			s.catalogRoutes(r, "articles", "urn:article:", true)
			s.catalogRoutes(r, "fctables", "urn:fctable:", false)
			s.householdRoutes(r)
			s.memberRoutes(r)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		if s.fail.Rate > 0 && s.chance() < s.fail.Rate {
			status := s.fail.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			writeError(w, status, codeForStatus(status), http.StatusText(status), "failure injected", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type subjectKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "missing bearer token", nil)
			return
		}
		subject, ok := s.store.subjectFor(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized", "invalid or expired token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
	})
}

func subjectOf(r *http.Request) string {
	s, _ := r.Context().Value(subjectKey{}).(string)
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeResult(w http.ResponseWriter, status int, result any) {
	writeJSON(w, status, map[string]any{"success": true, "result": result})
}

func writeError(w http.ResponseWriter, status int, code, title, detail string, fieldErrors []fieldError) {
	block := map[string]any{"title": title, "detail": detail, "code": code}
	if len(fieldErrors) > 0 {
		block["errors"] = fieldErrors
	}
	writeJSON(w, status, map[string]any{"success": false, "error": block, "help": helpURL})
}

// fieldError mirrors one entry of a 422 detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func missing(fields ...string) []fieldError {
	out := make([]fieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldError{Loc: []string{"body", f}, Msg: "field required", Type: "value_error.missing"})
	}
	return out
}

func writeValidation(w http.ResponseWriter, errs []fieldError) {
	writeError(w, http.StatusUnprocessableEntity, "request/unprocessable", "Unprocessable Entity", "Validation failed", errs)
}

func writeNotFound(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, "resource/not_found", "Not Found", what+" not found", nil)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "request/invalid"
	case http.StatusTooManyRequests:
		return "quota/rate_limited"
	case http.StatusBadGateway:
		return "upstream/bad_gateway"
	case http.StatusServiceUnavailable:
		return "upstream/unavailable"
	case http.StatusGatewayTimeout:
		return "upstream/timeout"
	}
	return "server/internal"
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "request/invalid", "Bad Request", "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// page reads limit and offset, defaulting to 100 and 0.
func page(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, offset = 100, 0
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "request/invalid", "Bad Request", "limit must be a non-negative integer", nil)
			return 0, 0, false
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "request/invalid", "Bad Request", "offset must be a non-negative integer", nil)
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
