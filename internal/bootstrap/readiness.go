package bootstrap

import (
	"context"
	"path"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/scaffold"
)

// NudgeLine touches the stylesheet under appDir so the dev server rebuilds
// once. It exits non-zero when the file is missing.
func NudgeLine(appDir string) string {
	css := path.Join(appDir, scaffold.PathIndexCSS)
	return shellquote.Join("test", "-f", css) + " && " + shellquote.Join("touch", css)
}

// awaitReady waits for the dev server to settle, nudges a rebuild and
// pauses again. Nothing here fails the bootstrap.
func (b *Bootstrapper) awaitReady(ctx context.Context, envID, sessionID string) {
	log := logging.With("session", sessionID, "stage", events.StageReadiness)

	settle := b.cfg.Settle()
	b.emit(sessionID, events.StageReadiness, events.LevelInfo, 0, "waiting for dev server to settle")
	log.Debug("waiting for dev server to settle", "delay", settle)
	if err := b.sleep(ctx, settle); err != nil {
		log.Warn("readiness wait interrupted", "error", err)
		return
	}

	nctx, cancel := context.WithTimeout(ctx, probeTimeout)
	res, err := b.provider.Execute(nctx, envID, provider.Command{Line: NudgeLine(b.cfg.Sandbox.AppDir)})
	cancel()
	switch {
	case err != nil:
		log.Warn("failed to nudge dev server", "error", err)
	case !res.OK():
		log.Warn("stylesheet not found, skipping rebuild nudge", "path", scaffold.PathIndexCSS)
	}

	if err := b.sleep(ctx, b.cfg.Readiness.NudgePause); err != nil {
		log.Warn("readiness pause interrupted", "error", err)
	}
}
