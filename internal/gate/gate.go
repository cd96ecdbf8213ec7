package gate

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"crewdeck.org/internal/audit"
	"crewdeck.org/internal/obs"
	"crewdeck.org/internal/session"
)

const (
	loginPath          = "/login"
	createAccountPath  = "/create-account"
	defaultLandingPath = "/projects"

	// nextParam carries the originally requested pathname through the
	// login flow.
	nextParam = "next"
)

// Kind discriminates gate decisions.
type Kind int

const (
	// KindContinue lets the request proceed to the next handler.
	KindContinue Kind = iota
	// KindRedirect sends the client to Decision.Location.
	KindRedirect
)

// Decision is the outcome of gating one request. Refreshed credentials, when
// present, must be committed onto the outgoing response on every branch:
// a session refresh is never dropped because the request is being redirected.
type Decision struct {
	Kind     Kind
	Location string
	UserID   string
	Refresh  *session.Credentials
}

// Gate orchestrates the route classifier and the session provider into a
// per-request routing decision.
type Gate struct {
	classifier *Classifier
	provider   session.Provider

	// Exclusions are exact literal paths the gate never intercepts
	// (static assets, API endpoints with their own auth).
	exclusions map[string]struct{}

	landing string
}

// Option configures Gate behavior.
type Option func(*Gate)

// WithClassifier overrides the default rule tables.
func WithClassifier(c *Classifier) Option {
	return func(g *Gate) {
		if c != nil {
			g.classifier = c
		}
	}
}

// WithExclusions sets the exact literal paths the gate skips entirely.
func WithExclusions(paths ...string) Option {
	return func(g *Gate) {
		g.exclusions = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			g.exclusions[p] = struct{}{}
		}
	}
}

// WithLandingPath overrides where authenticated users land when revisiting
// the auth entry pages without a next parameter.
func WithLandingPath(path string) Option {
	return func(g *Gate) {
		if path != "" {
			g.landing = path
		}
	}
}

// New constructs a Gate over the given session provider.
func New(provider session.Provider, opts ...Option) *Gate {
	g := &Gate{
		classifier: DefaultClassifier(),
		provider:   provider,
		exclusions: map[string]struct{}{},
		landing:    defaultLandingPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle produces the routing decision for one request. It never returns an
// error: a gate outage must not make the site unreachable, so any internal
// failure degrades to Continue and is logged as an operational error.
func (g *Gate) Handle(r *http.Request) (decision Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			obs.LogRequest(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "gate_panic_fail_open",
				"path":  r.URL.Path,
				"panic": rec,
			})
			obs.GateDecision("fail_open")
			decision = Decision{Kind: KindContinue}
		}
	}()

	path := r.URL.Path

	// Public paths short-circuit before any provider call so they stay
	// reachable during provider outages.
	if g.classifier.Classify(path) == Public && !isAuthEntry(path) {
		obs.GateDecision("public")
		return Decision{Kind: KindContinue}
	}

	sess, err := g.provider.Validate(r.Context(), session.ReadCredentials(r))
	if err != nil {
		// Availability over strictness: provider failures downgrade to
		// "no session", but stay observable.
		if !errors.Is(err, session.ErrNoSession) {
			obs.LogRequest(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "session_provider_error",
				"path":  path,
				"error": err.Error(),
			})
		}
		sess = session.Session{}
	}

	if sess.UserID == "" {
		if g.classifier.Classify(path) == Public {
			// Unauthenticated users may enter the auth pages.
			obs.GateDecision("public")
			return Decision{Kind: KindContinue, Refresh: sess.Refreshed}
		}
		obs.GateDecision("redirect_login")
		return Decision{
			Kind:     KindRedirect,
			Location: loginPath + "?" + nextParam + "=" + url.QueryEscape(path),
			Refresh:  sess.Refreshed,
		}
	}

	// Authenticated users re-entering the auth flow bounce back to their
	// intended destination.
	if isAuthEntry(path) {
		target := r.URL.Query().Get(nextParam)
		if target == "" {
			target = g.landing
		}
		obs.GateDecision("redirect_authed")
		return Decision{
			Kind:     KindRedirect,
			Location: target,
			UserID:   sess.UserID,
			Refresh:  sess.Refreshed,
		}
	}

	obs.GateDecision("continue")
	return Decision{Kind: KindContinue, UserID: sess.UserID, Refresh: sess.Refreshed}
}

// Middleware applies the gate ahead of next. Excluded paths bypass it
// entirely. Refreshed credentials are committed on every branch.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := g.exclusions[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}

		d := g.Handle(r)
		if d.Refresh != nil {
			session.WriteCredentials(w, r, *d.Refresh)
			_ = audit.LogEvent(r.Context(), "session.refreshed", map[string]any{
				"user_id": d.UserID,
				"path":    r.URL.Path,
			})
		}
		if d.Kind == KindRedirect {
			http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)
			return
		}
		if d.UserID != "" {
			r = r.WithContext(session.ContextWithUser(r.Context(), d.UserID))
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthEntry(path string) bool {
	return path == loginPath || path == createAccountPath
}
