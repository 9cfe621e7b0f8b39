// Package app wires the session agent: storage, the identity provider
// client, the session coordinator and the local HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authsession/internal/agent/http"
	"github.com/aussiebroadwan/authsession/internal/agent/navigator"
	"github.com/aussiebroadwan/authsession/internal/agent/notice"
	"github.com/aussiebroadwan/authsession/pkg/idp"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore/sqlite"
)

// BuildVersion is set at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application is the session agent with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store    *tokenstore.Store
	provider *idp.Client
	nav      *navigator.Navigator
	notice   *notice.Notice
	coord    *session.Coordinator

	watcher      *notice.Watcher
	housekeeping *Housekeeping

	server *http.Server
	router *httpapi.Router
}

// New creates an Application. Nothing talks to the identity provider until
// Run.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authsession-agent",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initSession(); err != nil {
		_ = app.store.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the agent and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()
	app.watcher.Start()

	app.logger.Info("session agent starting", "addr", app.cfg.Addr(), "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	go app.resume()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.stopWorkers()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// resume picks up a stored session at startup instead of on the first
// request.
func (app *Application) resume() {
	ok, err := app.coord.Initialize(context.Background())
	if err != nil {
		return
	}
	if !ok {
		app.logger.Info("no active session", "login_url", strings.TrimSuffix(app.cfg.AppURL, "/")+"/login")
		return
	}
	app.logger.Info("session resumed", "subject", app.coord.GetCurrentIdentity().SubjectID)
}

// Shutdown stops the HTTP server, then the background workers, then storage.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session agent...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.stopWorkers(); err != nil {
		app.logger.Error("error closing session storage", "error", err)
		return err
	}

	app.logger.Info("session agent stopped")
	return nil
}

func (app *Application) stopWorkers() error {
	app.housekeeping.Stop()
	app.watcher.Stop()
	app.coord.Close()
	return app.store.Close()
}

// initStore opens session storage. A database that cannot be opened is not
// fatal: the agent keeps the session in memory and reports storage as
// degraded.
func (app *Application) initStore() error {
	var (
		backend  tokenstore.Backend = tokenstore.NewMemory()
		openErr  error
		location = "memory"
	)

	if app.cfg.StorageMode == StorageSQLite {
		db, err := sqlite.Open(app.cfg.DatabaseFile)
		if err != nil {
			openErr = fmt.Errorf("open %s: %w", app.cfg.DatabaseFile, err)
		} else {
			backend = db
			location = app.cfg.DatabaseFile
		}
	}

	if app.cfg.StoragePassphrase != "" {
		sealed, err := tokenstore.NewSealed(backend, app.cfg.StoragePassphrase, app.cfg.IssuerURL+"#"+app.cfg.ClientID, app.logger)
		if err != nil {
			_ = backend.Close()
			return fmt.Errorf("failed to initialize storage encryption: %w", err)
		}
		backend = sealed
	}

	app.store = tokenstore.New(backend,
		tokenstore.WithPrefix(app.cfg.StorageKeyPrefix),
		tokenstore.WithLogger(app.logger),
	)
	if openErr != nil {
		app.store.Degrade(openErr)
		return nil
	}

	app.logger.Info("session storage ready", "location", location, "encrypted", app.cfg.StoragePassphrase != "")
	return nil
}

func (app *Application) initSession() error {
	provider, err := idp.New(idp.Config{
		IssuerURL:             app.cfg.IssuerURL,
		ClientID:              app.cfg.ClientID,
		ClientSecret:          app.cfg.ClientSecret,
		RedirectURL:           app.cfg.RedirectURL,
		PostLogoutRedirectURL: app.cfg.PostLogoutRedirectURL,
		Scopes:                app.cfg.Scopes,
	}, app.store, idp.WithLogger(app.logger))
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider client: %w", err)
	}
	app.provider = provider

	app.nav = navigator.New(app.cfg.AppURL,
		navigator.WithBrowser(app.cfg.OpenBrowser),
		navigator.WithLogger(app.logger),
	)
	app.notice = notice.New(app.logger)

	app.coord = session.New(app.provider, app.store, app.nav,
		session.WithLogger(app.logger),
		session.WithRefreshLead(app.cfg.RefreshLead),
		session.WithSafetyNetInterval(app.cfg.SafetyNetInterval),
		session.WithNotifier(app.notice),
		session.WithRoleClients(app.cfg.RoleClients...),
		session.WithLanding(session.LandingByRole(app.cfg.Landing, app.cfg.LandingDefault)),
	)

	// A new sign-in supersedes the expiry notice and the sign-in URL shown
	// for the previous session.
	app.coord.Subscribe(func(id *session.Identity) {
		if id == nil {
			return
		}
		app.notice.Reset()
		app.nav.ClearLastRedirect()
	})

	app.watcher = notice.NewWatcher(app.coord, app.cfg.WarningLead, 0, app.logger)
	app.housekeeping = NewHousekeeping(app.store, app.logger, app.cfg.HousekeepingInterval)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.coord,
		app.nav,
		app.notice,
		app.store,
		app.cfg.AppURL,
		app.cfg.AgentSecret,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the agent's HTTP API, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Store exposes session storage.
func (app *Application) Store() *tokenstore.Store {
	return app.store
}
