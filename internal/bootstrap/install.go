package bootstrap

import (
	"context"
	"fmt"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
)

// installLine is the dependency install command run in the app directory.
const installLine = "npm install"

// install runs the dependency install with retries. Exhausting the attempts
// is reported in the StageReport, never as an error.
func (b *Bootstrapper) install(ctx context.Context, envID, sessionID string) StageReport {
	log := logging.With("session", sessionID, "stage", events.StageInstall)
	b.emit(sessionID, events.StageInstall, events.LevelInfo, 0, "installing dependencies")

	attempts, err := b.policy(b.cfg.Install.MaxAttempts).Run(ctx, b.sleep, func(ctx context.Context, attempt int) error {
		err := b.installOnce(ctx, envID)
		if err != nil {
			log.Warn("dependency install attempt failed", "attempt", attempt, "error", err)
			b.emit(sessionID, events.StageInstall, events.LevelWarn, attempt, err.Error())
		}
		return err
	})

	if err != nil {
		log.Warn("dependency install exhausted, continuing degraded", "attempts", len(attempts), "error", err)
		b.emit(sessionID, events.StageInstall, events.LevelWarn, len(attempts),
			fmt.Sprintf("dependency install failed after %d attempts", len(attempts)))
	} else {
		log.Info("dependencies installed", "attempts", len(attempts))
		b.emit(sessionID, events.StageInstall, events.LevelInfo, len(attempts), "dependencies installed")
	}
	return StageReport{Attempts: attempts, Err: err}
}

func (b *Bootstrapper) installOnce(ctx context.Context, envID string) error {
	timeout := b.cfg.Install.AttemptTimeout
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := b.provider.Execute(actx, envID, provider.Command{
		Line: installLine,
		Dir:  b.cfg.Sandbox.AppDir,
	})
	if err != nil {
		if actx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", installLine, timeout)
		}
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s exited with code %d: %s", installLine, res.ExitCode, tail(res.Stderr, stderrTailBytes))
	}
	return nil
}
