package provider

import (
	"fmt"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

// New creates the Provider selected by cfg.Provider.Kind.
// "auto" picks e2b when an API key is configured, otherwise the local
// container engine.
func New(cfg *config.Config) (Provider, error) {
	kind := cfg.ResolveProviderKind()
	logging.Debug("creating provider", "kind", kind)

	switch kind {
	case config.ProviderE2B:
		if cfg.Provider.E2BAPIKey == "" {
			return nil, fmt.Errorf("provider e2b requires E2B_API_KEY or provider.e2b_api_key")
		}
		return NewE2BProvider(cfg.Provider.E2BAPIKey, cfg.Provider.E2BDomain, cfg.Provider.E2BTemplate), nil

	case config.ProviderDocker:
		return NewDockerProvider(cfg.Provider.DockerCommand, config.ContainerPrefix, cfg.Provider.DockerImage)

	default:
		return nil, fmt.Errorf("unknown provider kind: %s", kind)
	}
}
