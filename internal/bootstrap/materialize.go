package bootstrap

import (
	"context"
	"fmt"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/scaffold"
)

// materialize writes the project scaffold into the app directory in one
// provider call and returns the written paths.
func (b *Bootstrapper) materialize(ctx context.Context, envID string) ([]string, error) {
	opts := scaffold.DefaultOptions(b.cfg.Sandbox.AppPort, b.cfg.Provider.AllowedHostPattern())
	files, err := scaffold.Generate(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate scaffold: %w", err)
	}

	logging.Debug("writing scaffold", "env", envID, "root", b.cfg.Sandbox.AppDir, "files", len(files))
	if err := b.provider.WriteFiles(ctx, envID, b.cfg.Sandbox.AppDir, files); err != nil {
		return nil, err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}
