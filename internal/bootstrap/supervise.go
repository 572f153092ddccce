package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
)

// Dev server output files inside the environment.
const (
	DevServerLog = "/tmp/forage-preview-dev.log"
	DevServerErr = "/tmp/forage-preview-dev.err"
)

const (
	// stderrTailBytes is how much of a failed process's stderr gets logged.
	stderrTailBytes = 500
	// killSettle is the pause after stopping a stale dev server.
	killSettle = time.Second
	// probeTimeout bounds each short control command.
	probeTimeout = 10 * time.Second
)

// KillLine stops any dev server left over in the environment.
var KillLine = shellquote.Join("pkill", "-f", "vite")

// LaunchLine starts the dev server detached from the executing shell and
// prints its pid.
var LaunchLine = fmt.Sprintf("setsid nohup %s > %s 2> %s < /dev/null & echo $!",
	shellquote.Join("npm", "run", "dev"),
	shellquote.Join(DevServerLog),
	shellquote.Join(DevServerErr))

// TailLine returns the command printing the last n lines of path.
func TailLine(path string, n int) string {
	return shellquote.Join("tail", "-n", strconv.Itoa(n), path)
}

// startDevServer launches the dev server with retries. A server that never
// stays up is reported with PID 0 and the last error.
func (b *Bootstrapper) startDevServer(ctx context.Context, envID, sessionID string) ServerReport {
	log := logging.With("session", sessionID, "stage", events.StageServer)
	b.emit(sessionID, events.StageServer, events.LevelInfo, 0, "starting dev server")

	b.killStale(ctx, envID, log)

	var pid int
	attempts, err := b.policy(b.cfg.DevServer.MaxAttempts).Run(ctx, b.sleep, func(ctx context.Context, attempt int) error {
		p, err := b.launchOnce(ctx, envID)
		if err != nil {
			log.Warn("dev server attempt failed", "attempt", attempt, "error", err)
			b.emit(sessionID, events.StageServer, events.LevelWarn, attempt, err.Error())
			return err
		}
		pid = p
		return nil
	})

	report := ServerReport{StageReport: StageReport{Attempts: attempts, Err: err}}
	if err != nil {
		log.Warn("dev server failed to start, continuing without it", "attempts", len(attempts), "error", err)
		b.emit(sessionID, events.StageServer, events.LevelWarn, len(attempts),
			fmt.Sprintf("dev server failed after %d attempts", len(attempts)))
		return report
	}

	report.PID = pid
	log.Info("dev server started", "pid", pid, "attempts", len(attempts))
	b.emit(sessionID, events.StageServer, events.LevelInfo, len(attempts), fmt.Sprintf("dev server running (pid %d)", pid))
	return report
}

// killStale is advisory: pkill exits 1 when nothing matched.
func (b *Bootstrapper) killStale(ctx context.Context, envID string, log *slog.Logger) {
	kctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if res, err := b.provider.Execute(kctx, envID, provider.Command{Line: KillLine}); err != nil {
		log.Debug("failed to stop stale dev server", "error", err)
	} else if res.ExitCode > 1 {
		log.Debug("stale dev server kill returned non-zero", "exit", res.ExitCode)
	}
	if err := b.sleep(ctx, killSettle); err != nil {
		log.Debug("interrupted after stale dev server kill", "error", err)
	}
}

func (b *Bootstrapper) launchOnce(ctx context.Context, envID string) (int, error) {
	res, err := b.provider.Execute(ctx, envID, provider.Command{
		Line: LaunchLine,
		Dir:  b.cfg.Sandbox.AppDir,
		Env: map[string]string{
			"FORCE_COLOR":  "0",
			"NODE_OPTIONS": fmt.Sprintf("--max-old-space-size=%d", b.cfg.DevServer.MaxHeapMB),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to launch dev server: %w", err)
	}
	if !res.OK() {
		return 0, fmt.Errorf("dev server launch exited with code %d: %s", res.ExitCode, tail(res.Stderr, stderrTailBytes))
	}

	pid, err := parsePID(res.Stdout)
	if err != nil {
		return 0, err
	}

	if err := b.sleep(ctx, b.cfg.DevServer.ProbeDelay); err != nil {
		return 0, err
	}

	if b.alive(ctx, envID, pid) {
		return pid, nil
	}

	return 0, fmt.Errorf("dev server (pid %d) exited during startup: %s", pid, b.stderrTail(ctx, envID))
}

func (b *Bootstrapper) alive(ctx context.Context, envID string, pid int) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	res, err := b.provider.Execute(pctx, envID, provider.Command{Line: provider.ProbeLine(pid)})
	return err == nil && res.OK()
}

// stderrTail reads the end of the dev server's stderr file.
func (b *Bootstrapper) stderrTail(ctx context.Context, envID string) string {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	line := shellquote.Join("tail", "-c", strconv.Itoa(stderrTailBytes), DevServerErr)
	res, err := b.provider.Execute(pctx, envID, provider.Command{Line: line})
	if err != nil || !res.OK() {
		return "no stderr captured"
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		return s
	}
	return "no stderr captured"
}

// parsePID takes the pid from the last non-empty line of the launch output.
func parsePID(out string) (int, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	pid, err := strconv.Atoi(last)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("no pid in dev server launch output %q", logging.Truncate(out, 80))
	}
	return pid, nil
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
