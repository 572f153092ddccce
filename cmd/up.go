package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/api"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/tui"
)

// progressBuffer is the event queue depth for the progress display.
const progressBuffer = 64

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Bootstrap a preview sandbox",
	Long: `Bootstrap a preview sandbox and print its URL.

By default the sandbox is driven from this process and destroyed when up
exits (Ctrl+C) or the sandbox expires. With --remote the request goes to a
running forage-preview server and the session stays there.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

var (
	upRemote bool
	upPlain  bool
)

func init() {
	upCmd.Flags().BoolVar(&upRemote, "remote", false, "Bootstrap through a running forage-preview server")
	upCmd.Flags().BoolVar(&upPlain, "plain", false, "Print progress as plain lines instead of the interactive view")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if upRemote {
		return upRemoteSession(ctx, out, newClient(cfg))
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	return upLocalSession(ctx, out, a)
}

// upLocalSession bootstraps in-process and holds the session until ctx is
// done or the sandbox expires. It takes ownership of a.
func upLocalSession(ctx context.Context, out io.Writer, a *app.App) error {
	defer closeApp(ctx, a)

	logging.Debug("bootstrapping locally", "provider", a.Provider.Name())
	ch, unsubscribe := a.Bus.Subscribe(progressBuffer)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	outcome, err := watchBootstrap(out, ch, unsubscribe, func() (*tui.Outcome, error) {
		res, err := a.Bootstrap(runCtx)
		if err != nil {
			return nil, err
		}
		return &tui.Outcome{
			SessionID: res.Session.ID,
			URL:       res.Session.URL,
			Message:   res.Message,
			Degraded:  res.Session.Degraded(),
		}, nil
	})
	if err != nil {
		return bootstrapFailed(err)
	}
	printOutcome(out, outcome)

	var expired <-chan time.Time
	if s := a.Store.Current(); s != nil && !s.ExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(s.ExpiresAt))
		defer timer.Stop()
		expired = timer.C
		fmt.Fprintf(out, "  Expires: %s\n", s.ExpiresAt.Local().Format("15:04:05"))
	}

	logInfo("Press Ctrl+C to destroy the sandbox")
	select {
	case <-ctx.Done():
		logInfo("Destroying sandbox %s...", outcome.SessionID)
	case <-expired:
		logWarning("Sandbox %s expired", outcome.SessionID)
	}
	return nil
}

// upRemoteSession asks the server for a new session, following its event
// stream while the request runs.
func upRemoteSession(ctx context.Context, out io.Writer, c *api.Client) error {
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	ch, err := c.Events(streamCtx)
	if err != nil {
		// Progress is optional; the create call reports the outcome.
		logging.Debug("event stream unavailable", "error", err)
		closed := make(chan events.Event)
		close(closed)
		ch = closed
	}

	outcome, err := watchBootstrap(out, ch, stopStream, func() (*tui.Outcome, error) {
		resp, err := c.Create(ctx)
		if err != nil {
			return nil, err
		}
		return &tui.Outcome{
			SessionID: resp.SessionID,
			URL:       resp.URL,
			Message:   resp.Message,
			Degraded:  resp.Degraded,
		}, nil
	})
	if err != nil {
		return bootstrapFailed(err)
	}

	printOutcome(out, outcome)
	fmt.Fprintf(out, "  Destroy: forage-preview down\n")
	return nil
}

// watchBootstrap runs run while displaying the events from ch. The
// interactive view is used when stdout is a terminal and --plain is unset.
// stopEvents must close ch.
func watchBootstrap(out io.Writer, ch <-chan events.Event, stopEvents func(), run func() (*tui.Outcome, error)) (*tui.Outcome, error) {
	if upPlain || !stdoutIsTerminal() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range ch {
				fmt.Fprintln(out, tui.FormatEvent(ev))
			}
		}()
		outcome, err := run()
		stopEvents()
		<-done
		return outcome, err
	}

	defer stopEvents()
	return tui.RunProgress(ch, run)
}

func printOutcome(out io.Writer, o *tui.Outcome) {
	logSuccess("%s", o.Message)
	fmt.Fprintf(out, "  Session: %s\n", o.SessionID)
	fmt.Fprintf(out, "  URL: %s\n", o.URL)
	if o.Degraded {
		logWarning("Bootstrap finished with warnings; see: forage-preview audit-log %s", o.SessionID)
	}
}

// bootstrapFailed shows the server-side cause chain of a failed bootstrap
// and maps interruption to its own message.
func bootstrapFailed(err error) error {
	if errors.Is(err, tui.ErrInterrupted) {
		return errors.Wrap(errors.ExitGeneralError, "bootstrap interrupted", err)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Details != "" {
		for _, line := range strings.Split(apiErr.Details, "\n") {
			logError("  %s", line)
		}
	}
	return err
}
