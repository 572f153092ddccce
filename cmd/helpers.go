package cmd

import (
	"context"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/api"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
)

// teardownTimeout bounds the sandbox teardown when a command exits.
const teardownTimeout = 30 * time.Second

// newApp builds the application for commands that drive the provider
// directly. Tests replace it to inject a mock provider.
var newApp = func(cfg *config.Config) (*app.App, error) {
	return app.New(app.WithConfig(cfg))
}

// stdoutIsTerminal reports whether progress can be drawn interactively.
// Tests replace it.
var stdoutIsTerminal = func() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// loadConfig loads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.ConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// newClient returns a client for the server at --server, or the configured
// listen address.
func newClient(cfg *config.Config) *api.Client {
	addr := serverAddr
	if addr == "" {
		addr = cfg.Server.Listen
	}
	return api.NewClient(addr, cfg.Server.APIKey)
}

// closeApp tears the app's session down even if ctx was cancelled.
func closeApp(ctx context.Context, a *app.App) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	a.Close(cctx)
}
