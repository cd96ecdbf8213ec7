package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"crewdeck.org/internal/config"
	"crewdeck.org/internal/gate"
	"crewdeck.org/internal/httpapi"
	"crewdeck.org/internal/membership"
	"crewdeck.org/internal/obs"
	"crewdeck.org/internal/session"
	"crewdeck.org/internal/store/pg"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Printf(`{"level":"fatal","msg":"config load failed","error":%q}`, err.Error())
		os.Exit(1)
	}
	if cfg.AuthSecret == "" {
		logger.Println(`{"level":"fatal","msg":"CREWDECK_AUTH_SECRET is required"}`)
		os.Exit(1)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	sessions, err := session.NewService(cfg.AuthSecret,
		session.WithAccessTTL(cfg.AccessTTL),
		session.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		logger.Printf(`{"level":"fatal","msg":"session service init failed","error":%q}`, err.Error())
		os.Exit(1)
	}

	var (
		store   membership.Store
		probe   httpapi.ReadyProbe
		closeFn func() error
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Printf(`{"level":"fatal","msg":"postgres open failed","error":%q}`, err.Error())
			os.Exit(1)
		}
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
		closeFn = pgStore.Close
		logger.Println(`{"level":"info","msg":"storage backend: postgres"}`)
	} else {
		mem := membership.NewInMemory()
		seedDev(mem, logger)
		store = mem
		logger.Println(`{"level":"warn","msg":"storage backend: in-memory (development only)"}`)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	g := gate.New(sessions,
		gate.WithExclusions(httpapi.GateExclusions...),
		gate.WithLandingPath(cfg.LandingPath),
	)

	api := httpapi.New(probe, version, sessions, g, store,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSecond))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf(`{"level":"info","msg":"listening","addr":%q,"version":%q}`, cfg.Addr, version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Println(`{"level":"info","msg":"shutdown signal received"}`)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf(`{"level":"fatal","msg":"server failed","error":%q}`, err.Error())
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf(`{"level":"error","msg":"graceful shutdown failed","error":%q}`, err.Error())
		os.Exit(1)
	}
	logger.Println(`{"level":"info","msg":"shutdown complete"}`)
}

// seedDev populates the in-memory store with a demo account and project so
// the flows are exercisable without a database.
func seedDev(mem *membership.InMemory, logger interface{ Printf(string, ...any) }) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	owner := membership.User{ID: "dev-owner", Email: "owner@crewdeck.local", Name: "Dev Owner", PasswordHash: string(hash)}
	guest := membership.User{ID: "dev-guest", Email: "guest@crewdeck.local", Name: "Dev Guest", PasswordHash: string(hash)}
	_ = mem.CreateUser(ctx, &owner)
	_ = mem.CreateUser(ctx, &guest)

	project := membership.Project{ID: "dev-project", Name: "Demo Project", CreatedBy: owner.ID}
	_ = mem.CreateProject(ctx, &project)

	invite := membership.Invitation{
		ID:            "dev-invite",
		ProjectID:     project.ID,
		InvitedUserID: guest.ID,
		Role:          membership.RoleWrite,
	}
	_ = mem.CreateInvitation(ctx, &invite)
	logger.Printf(`{"level":"info","msg":"seeded dev data","invite":%q,"login":"guest@crewdeck.local / demo-password"}`, invite.ID)
}
