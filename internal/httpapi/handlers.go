package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"crewdeck.org/internal/gate"
	"crewdeck.org/internal/membership"
	"crewdeck.org/internal/obs"
	"crewdeck.org/internal/session"
)

// ReadyProbe reports backend readiness (database ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// GateExclusions are the exact literal paths the access gate never
// intercepts: operational endpoints, static assets, and API endpoints that
// carry their own credential handling.
var GateExclusions = []string{
	"/metrics",
	"/healthz",
	"/readyz",
	"/favicon.ico",
	"/api/auth/session",
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions *session.Service
	gate     *gate.Gate
	workflow *membership.Workflow
	store    membership.Store

	rateBurst  int
	ratePerSec int
}

// APIOption configures optional API behavior.
type APIOption func(*API)

// WithRateLimit overrides the default per-client rate limit.
func WithRateLimit(burst, perSecond int) APIOption {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

// New wires the HTTP surface over the session provider and membership store.
func New(rp ReadyProbe, version string, sessions *session.Service, g *gate.Gate, store membership.Store, opts ...APIOption) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		gate:       g,
		workflow:   membership.NewWorkflow(store),
		store:      store,
		rateBurst:  50,
		ratePerSec: 25,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// session & membership core
	a.mux.HandleFunc("/api/auth/session", a.handleSessionIssue)
	a.mux.HandleFunc("/api/projects/", a.handleProjectAPI)
	a.mux.HandleFunc("/invites/", a.handleInvite)
	a.mux.HandleFunc("/projects", a.handleProjects)
	a.mux.HandleFunc("/projects/", a.handleProjectResource)

	// page shells rendered by the frontend; the gate decides reachability
	for _, p := range []string{
		"/login", "/create-account", "/forgot-password",
		"/auth/callback", "/auth/reset-password", "/auth/auth-error",
		"/settings",
	} {
		a.mux.HandleFunc(p, a.servePage(strings.TrimPrefix(p, "/")))
	}
	a.mux.HandleFunc("/profile/", a.servePage("profile"))
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		a.servePage("home")(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = a.gate.Middleware(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "crewdeck-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<!doctype html><html><head><title>crewdeck · "+name+
			"</title></head><body data-page=\""+name+"\"></body></html>\n")
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
