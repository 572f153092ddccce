package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/api"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/monitor"
)

// shutdownTimeout bounds in-flight requests once a shutdown signal arrives.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the preview HTTP API",
	Long: `Run the HTTP API that bootstraps preview sandboxes on request.

POST /api/sandbox creates a new session, replacing the current one.
SIGINT or SIGTERM stops the server and destroys the active session.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Address to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		closeApp(cmd.Context(), a)
		return errors.Wrap(errors.ExitGeneralError, "failed to listen on "+cfg.Server.Listen, err)
	}

	if cfg.Server.APIKey == "" {
		logWarning("No API key configured; /api routes are unauthenticated")
	}
	logInfo("Serving preview API on %s", ln.Addr())
	logInfo("Provider: %s", a.Provider.Name())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, a, ln, cfg.Server)
}

// serve runs the API on ln until ctx is done, then drains requests and
// destroys the active session. It takes ownership of a.
func serve(ctx context.Context, a *app.App, ln net.Listener, sc config.ServerConfig) error {
	srv := &http.Server{
		Handler:           api.NewRouter(a, sc.APIKey, logging.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	monCtx, stopMonitor := context.WithCancel(ctx)
	monDone := make(chan struct{})
	if sc.MonitorInterval > 0 {
		mon := monitor.New(sc.MonitorInterval, a.Store, a.Provider, monitor.WithBus(a.Bus))
		go func() {
			defer close(monDone)
			_ = mon.Run(monCtx)
		}()
	} else {
		close(monDone)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = errors.Wrap(errors.ExitGeneralError, "server failed", err)
		}
	case <-ctx.Done():
		logging.Info("shutting down preview server")
	}

	stopMonitor()
	<-monDone

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("server shutdown incomplete", "error", err)
	}
	a.Close(shutdownCtx)

	return serveErr
}
