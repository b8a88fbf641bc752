// Package trigger exposes the dispatch run over HTTP for an external scheduler.
package trigger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/velmie/unlocknotify"
)

// Paths served by the handler.
const (
	RunPath    = "/api/cron/notify"
	HealthPath = "/healthz"
)

// ErrRunnerRequired is returned by New when the runner is nil.
var ErrRunnerRequired = errors.New("trigger: runner is required")

// Runner performs one dispatch run.
type Runner interface {
	Run(ctx context.Context) (unlocknotify.Summary, error)
}

// Lease guards against overlapping runs. Acquire reports false when another run holds it.
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

type errorBody struct {
	Error string `json:"error"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithSecret sets the shared secret expected as a bearer token.
func WithSecret(secret string) Option {
	return func(h *Handler) {
		h.secret = secret
	}
}

// WithProduction rejects every run when no secret is configured.
func WithProduction(production bool) Option {
	return func(h *Handler) {
		h.production = production
	}
}

// WithLease skips runs while another holds the lease.
func WithLease(lease Lease) Option {
	return func(h *Handler) {
		h.lease = lease
	}
}

// WithLogger sets the logger.
func WithLogger(logger unlocknotify.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler serves the run trigger and a health probe.
type Handler struct {
	runner     Runner
	secret     string
	production bool
	lease      Lease
	logger     unlocknotify.Logger
	router     chi.Router
}

// New builds the trigger router.
func New(runner Runner, opts ...Option) (*Handler, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	h := &Handler{runner: runner, logger: unlocknotify.NopLogger{}}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(HealthPath, h.health)
	r.Group(func(r chi.Router) {
		r.Use(h.authorize)
		r.Get(RunPath, h.run)
		r.Post(RunPath, h.run)
	})
	h.router = r

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.allowed(r) {
			h.logger.Warn("trigger rejected", "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowed(r *http.Request) bool {
	if h.secret == "" {
		return !h.production
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.lease != nil {
		release, acquired, err := h.lease.Acquire(ctx)
		if err != nil {
			h.logger.Error("acquire run lease", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "lease unavailable"})
			return
		}
		if !acquired {
			writeJSON(w, http.StatusConflict, errorBody{Error: "run in progress"})
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				h.logger.Warn("release run lease", "err", err)
			}
		}()
	}

	summary, err := h.runner.Run(ctx)
	if err != nil {
		h.logger.Error("dispatch run failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "run failed"})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
