package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/retry"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/session"
)

// ReadyMessage is returned to callers when a bootstrap completes.
const ReadyMessage = "Sandbox created and Vite React app initialized"

// destroyTimeout bounds teardown of a partially created environment.
const destroyTimeout = 30 * time.Second

// Bootstrapper brings a fresh preview sandbox up from nothing.
type Bootstrapper struct {
	// mu serializes runs so only one bootstrap drives the store at a time.
	mu sync.Mutex

	cfg      *config.Config
	provider provider.Provider
	store    *session.Store
	bus      *events.Bus
	sleep    retry.Sleeper
	rand     func() float64
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithBus publishes stage events to bus.
func WithBus(bus *events.Bus) Option {
	return func(b *Bootstrapper) { b.bus = bus }
}

// WithSleeper replaces the real clock used for backoff and settle waits.
func WithSleeper(s retry.Sleeper) Option {
	return func(b *Bootstrapper) { b.sleep = s }
}

// WithRand replaces the jitter source.
func WithRand(r func() float64) Option {
	return func(b *Bootstrapper) { b.rand = r }
}

// New creates a Bootstrapper.
func New(cfg *config.Config, p provider.Provider, store *session.Store, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		cfg:      cfg,
		provider: p,
		store:    store,
		sleep:    retry.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is the outcome of a successful bootstrap.
type Result struct {
	Session *session.Session
	Files   []string
	Install StageReport
	Server  ServerReport
	Elapsed time.Duration
	Message string
}

// StageReport records the attempts of a retried stage.
type StageReport struct {
	Attempts []retry.Attempt
	Err      error
}

// OK reports whether the stage eventually succeeded.
func (r StageReport) OK() bool {
	return len(r.Attempts) > 0 && r.Err == nil
}

// ServerReport is the dev server stage report plus the surviving pid.
type ServerReport struct {
	StageReport
	PID int
}

// Run replaces the current session with a new one and brings it to ready.
// Only environment creation and the scaffold write are fatal; dependency
// install and dev server failures leave a degraded session behind.
func (b *Bootstrapper) Run(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	logging.Debug("starting bootstrap", "provider", b.provider.Name())

	h := b.store.Replace(ctx)

	env, err := b.provider.Create(ctx, provider.CreateOptions{
		Port:    b.cfg.Sandbox.AppPort,
		Timeout: b.cfg.Sandbox.Timeout(),
		WorkDir: b.cfg.Sandbox.AppDir,
	})
	if err != nil {
		h.Abandon()
		b.emit("", events.StageFailed, events.LevelError, 0, fmt.Sprintf("environment creation failed: %v", err))
		return nil, errors.ProvisionFailed(err)
	}
	if err := checkEnvironment(env); err != nil {
		if env.ID != "" {
			b.destroyPartial(ctx, env.ID)
		}
		h.Abandon()
		b.emit("", events.StageFailed, events.LevelError, 0, fmt.Sprintf("environment creation failed: %v", err))
		return nil, errors.ProvisionFailed(err)
	}

	expiresAt := env.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = env.CreatedAt.Add(b.cfg.Sandbox.Timeout())
	}

	cleanup := func() {
		b.destroyPartial(ctx, env.ID)
		h.Abandon()
	}

	if !h.SetEnvironment(b.provider.Name(), env, expiresAt) {
		b.destroyPartial(ctx, env.ID)
		return nil, errors.Superseded()
	}
	snap := h.Snapshot()
	if snap == nil {
		return nil, errors.Superseded()
	}
	id := snap.ID
	log := logging.With("session", id, "env", env.ID)
	log.Info("sandbox environment created", "host", env.Host)
	b.emit(id, events.StageCreate, events.LevelInfo, 0, "sandbox environment created")

	if ext, ok := b.provider.(provider.TimeoutExtender); ok {
		if err := ext.SetTimeout(ctx, env.ID, b.cfg.Sandbox.Timeout()); err != nil {
			log.Warn("failed to extend sandbox timeout", "error", err)
		}
	}

	files, err := b.materialize(ctx, env.ID)
	if err != nil {
		h.SetStatus(session.StatusFailed)
		cleanup()
		b.emit(id, events.StageFailed, events.LevelError, 0, fmt.Sprintf("scaffold write failed: %v", err))
		return nil, errors.ScaffoldFailed(err)
	}
	h.SeedManifest(files)
	h.SetStatus(session.StatusScaffoldWritten)
	b.emit(id, events.StageScaffold, events.LevelInfo, 0, fmt.Sprintf("wrote %d scaffold files", len(files)))

	h.SetStatus(session.StatusInstalling)
	install := b.install(ctx, env.ID, id)
	if install.OK() {
		h.SetInstallOutcome(session.InstallOK)
	} else {
		h.SetInstallOutcome(session.InstallDegraded)
	}

	h.SetStatus(session.StatusServerStarting)
	server := b.startDevServer(ctx, env.ID, id)
	if server.OK() {
		h.SetServerOutcome(session.ServerStarted, server.PID)
	} else {
		h.SetServerOutcome(session.ServerFailed, 0)
	}

	b.awaitReady(ctx, env.ID, id)

	ready := h.MarkReady()
	if ready == nil {
		// A concurrent destroy took the session and its environment.
		log.Warn("bootstrap superseded before completion")
		return nil, errors.Superseded()
	}

	elapsed := time.Since(start)
	log.Info("sandbox ready", "url", ready.URL, "elapsed", elapsed.Round(time.Millisecond),
		"install", ready.Install, "server", ready.Server)
	b.bus.Publish(events.Event{
		Session: id,
		Stage:   events.StageReady,
		Level:   readyLevel(ready),
		Message: ReadyMessage,
		URL:     ready.URL,
	})

	return &Result{
		Session: ready,
		Files:   files,
		Install: install,
		Server:  server,
		Elapsed: elapsed,
		Message: ReadyMessage,
	}, nil
}

// destroyPartial tears down an environment that never became a session.
// It runs even if ctx is already cancelled.
func (b *Bootstrapper) destroyPartial(ctx context.Context, envID string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), destroyTimeout)
	defer cancel()
	if err := b.provider.Destroy(dctx, envID); err != nil {
		logging.Warn("failed to destroy partial sandbox", "env", envID, "error", err)
	}
}

func (b *Bootstrapper) emit(sessionID string, stage events.Stage, level events.Level, attempt int, msg string) {
	b.bus.Publish(events.Event{
		Session: sessionID,
		Stage:   stage,
		Level:   level,
		Attempt: attempt,
		Message: msg,
	})
}

func (b *Bootstrapper) policy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Base:        b.cfg.Install.BackoffBase,
		Jitter:      b.cfg.Install.BackoffJitter,
		Rand:        b.rand,
	}
}

func readyLevel(s *session.Session) events.Level {
	if s.Degraded() {
		return events.LevelWarn
	}
	return events.LevelInfo
}

// checkEnvironment rejects environments that cannot be addressed again.
// Files, commands and teardown all go through the id.
func checkEnvironment(env *provider.Environment) error {
	switch {
	case env.ID == "":
		return fmt.Errorf("provider returned no sandbox id")
	case env.URL == "":
		return fmt.Errorf("provider returned no url for sandbox %s", env.ID)
	}
	return nil
}
