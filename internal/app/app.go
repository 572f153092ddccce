package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/audit"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/bootstrap"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/retry"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/session"
)

// auditBuffer is the audit subscriber's queue depth.
const auditBuffer = 256

// App holds the application dependencies
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Provider creates and drives sandbox environments
	Provider provider.Provider

	// Store holds the single active session
	Store *session.Store

	// Bus carries bootstrap progress events
	Bus *events.Bus

	// Audit persists events; nil disables the audit log
	Audit *audit.Logger

	// Bootstrapper runs the bootstrap pipeline
	Bootstrapper *bootstrap.Bootstrapper

	sleep     retry.Sleeper
	noAudit   bool
	stopAudit func()
	auditDone chan struct{}
}

// Option is a function that configures the App
type Option func(*App)

// WithConfig sets the configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithProvider sets a custom provider
func WithProvider(p provider.Provider) Option {
	return func(a *App) {
		a.Provider = p
	}
}

// WithSleeper replaces the clock used by the bootstrap waits
func WithSleeper(s retry.Sleeper) Option {
	return func(a *App) {
		a.sleep = s
	}
}

// WithoutAudit disables the audit log
func WithoutAudit() Option {
	return func(a *App) {
		a.noAudit = true
	}
}

// New creates a new App with the given options.
// If no provider is given, one is created from the configuration.
func New(opts ...Option) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}

	if app.Config == nil {
		app.Config = config.Default()
	}

	if app.Provider == nil {
		p, err := provider.New(app.Config)
		if err != nil {
			return nil, errors.ConfigError("failed to initialize provider", err)
		}
		app.Provider = p
	}

	app.Store = session.NewStore(app.Provider)
	app.Bus = events.NewBus()

	if !app.noAudit {
		app.Audit = audit.NewLogger(app.Config.State.Dir)
		ch, cancel := app.Bus.Subscribe(auditBuffer)
		app.stopAudit = cancel
		app.auditDone = make(chan struct{})
		go func() {
			defer close(app.auditDone)
			app.Audit.Follow(ch)
		}()
	}

	bopts := []bootstrap.Option{bootstrap.WithBus(app.Bus)}
	if app.sleep != nil {
		bopts = append(bopts, bootstrap.WithSleeper(app.sleep))
	}
	app.Bootstrapper = bootstrap.New(app.Config, app.Provider, app.Store, bopts...)

	logging.Debug("application initialized", "provider", app.Provider.Name(), "audit", !app.noAudit)
	return app, nil
}

// Bootstrap replaces the current session with a freshly bootstrapped one.
func (a *App) Bootstrap(ctx context.Context) (*bootstrap.Result, error) {
	return a.Bootstrapper.Run(ctx)
}

// Destroy tears down the active session. It returns a NoSession error when
// there is nothing to destroy.
func (a *App) Destroy(ctx context.Context) (*session.Session, error) {
	s := a.Store.DestroyCurrent(ctx)
	if s == nil {
		return nil, errors.NoSession()
	}
	a.Bus.Publish(events.Event{
		Session: s.ID,
		Stage:   events.StageDestroy,
		Message: "sandbox destroyed",
	})
	return s, nil
}

// Status returns the active session (nil if none) and its health.
func (a *App) Status(ctx context.Context) (*session.Session, *health.CheckResult) {
	s := a.Store.Current()
	return s, health.Check(ctx, s, a.Provider, time.Now())
}

// DevServerLogs is the captured dev server output of the active session.
type DevServerLogs struct {
	SessionID string
	Stdout    string
	Stderr    string
}

// Logs returns the last lines of the dev server's stdout and stderr.
func (a *App) Logs(ctx context.Context, lines int) (*DevServerLogs, error) {
	s := a.Store.Current()
	if s == nil {
		return nil, errors.NoSession()
	}
	if lines < 1 {
		return nil, errors.ValidationError(fmt.Sprintf("lines must be positive (got %d)", lines))
	}

	out := &DevServerLogs{SessionID: s.ID}
	for _, f := range []struct {
		path string
		dst  *string
	}{
		{bootstrap.DevServerLog, &out.Stdout},
		{bootstrap.DevServerErr, &out.Stderr},
	} {
		res, err := a.Provider.Execute(ctx, s.EnvironmentID, provider.Command{Line: bootstrap.TailLine(f.path, lines)})
		if err != nil {
			return nil, errors.ProviderError("exec", err)
		}
		// A missing file just means nothing was written yet.
		if res.OK() {
			*f.dst = res.Stdout
		}
	}
	return out, nil
}

// Close tears down the active session and stops event delivery. Queued
// audit events are flushed before it returns.
func (a *App) Close(ctx context.Context) {
	if s := a.Store.Current(); s != nil {
		a.Bus.Publish(events.Event{
			Session: s.ID,
			Stage:   events.StageDestroy,
			Message: "sandbox destroyed on shutdown",
		})
	}
	a.Store.Shutdown(ctx)
	if a.stopAudit != nil {
		a.stopAudit()
		<-a.auditDone
	}
	a.Bus.Close()
}
