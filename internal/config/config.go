package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath = "/etc/forage-preview/config.toml"
	DefaultStateDir   = "/var/lib/forage-preview"
	DefaultListenAddr = "127.0.0.1:8787"
	DefaultAppDir     = "/home/user/app"
	DefaultAppPort    = 5173
	DefaultE2BDomain  = "e2b.app"
	DefaultTemplate   = "code-interpreter-v1"
	DefaultImage      = "node:20-bookworm"
	ContainerPrefix   = "forage-preview-"
)

// Provider kinds
const (
	ProviderAuto   = "auto"
	ProviderE2B    = "e2b"
	ProviderDocker = "docker"
)

// Config is the full forage-preview configuration loaded from config.toml.
// Nothing in here carries behavior; every stage reads its knobs from it.
type Config struct {
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Provider  ProviderConfig  `toml:"provider"`
	Install   InstallConfig   `toml:"install"`
	DevServer DevServerConfig `toml:"devserver"`
	Readiness ReadinessConfig `toml:"readiness"`
	Server    ServerConfig    `toml:"server"`
	State     StateConfig     `toml:"state"`
}

// SandboxConfig describes the remote environment and the app inside it.
type SandboxConfig struct {
	TimeoutMinutes int    `toml:"timeout_minutes"`
	AppPort        int    `toml:"app_port"`
	AppDir         string `toml:"app_dir"`
}

// Timeout returns the environment expiry as a duration.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMinutes) * time.Minute
}

// ProviderConfig selects and configures the sandbox backend.
type ProviderConfig struct {
	Kind          string `toml:"kind"`
	E2BAPIKey     string `toml:"e2b_api_key"`
	E2BDomain     string `toml:"e2b_domain"`
	E2BTemplate   string `toml:"e2b_template"`
	DockerImage   string `toml:"docker_image"`
	DockerCommand string `toml:"docker_command"`
}

// AllowedHostPattern is the dev server host allowlist entry for the provider's
// public domain. Sandbox hostnames are subdomains of it, never localhost.
func (p ProviderConfig) AllowedHostPattern() string {
	domain := p.E2BDomain
	if domain == "" {
		domain = DefaultE2BDomain
	}
	return "." + strings.TrimPrefix(domain, ".")
}

// InstallConfig bounds the package install step.
type InstallConfig struct {
	MaxAttempts    int           `toml:"max_attempts"`
	AttemptTimeout time.Duration `toml:"attempt_timeout"`
	BackoffBase    time.Duration `toml:"backoff_base"`
	BackoffJitter  time.Duration `toml:"backoff_jitter"`
}

// DevServerConfig bounds the dev server launch.
type DevServerConfig struct {
	MaxAttempts  int           `toml:"max_attempts"`
	ProbeDelay   time.Duration `toml:"probe_delay"`
	StartupDelay time.Duration `toml:"startup_delay"`
	MaxHeapMB    int           `toml:"max_heap_mb"`
}

// ReadinessConfig tunes the post-start settle window.
type ReadinessConfig struct {
	SafetyFactor float64       `toml:"safety_factor"`
	NudgePause   time.Duration `toml:"nudge_pause"`
}

// Settle returns the full wait before the stylesheet nudge.
func (c *Config) Settle() time.Duration {
	return time.Duration(float64(c.DevServer.StartupDelay) * c.Readiness.SafetyFactor)
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `toml:"listen"`
	APIKey string `toml:"api_key"`
	// MonitorInterval is how often the server checks the active session
	// for expiry. Zero disables the monitor.
	MonitorInterval time.Duration `toml:"monitor_interval"`
}

// StateConfig locates local state (audit log).
type StateConfig struct {
	Dir string `toml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			TimeoutMinutes: 15,
			AppPort:        DefaultAppPort,
			AppDir:         DefaultAppDir,
		},
		Provider: ProviderConfig{
			Kind:        ProviderAuto,
			E2BDomain:   DefaultE2BDomain,
			E2BTemplate: DefaultTemplate,
			DockerImage: DefaultImage,
		},
		Install: InstallConfig{
			MaxAttempts:    3,
			AttemptTimeout: 120 * time.Second,
			BackoffBase:    2 * time.Second,
			BackoffJitter:  time.Second,
		},
		DevServer: DevServerConfig{
			MaxAttempts:  3,
			ProbeDelay:   3 * time.Second,
			StartupDelay: 7 * time.Second,
			MaxHeapMB:    2048,
		},
		Readiness: ReadinessConfig{
			SafetyFactor: 1.5,
			NudgePause:   3 * time.Second,
		},
		Server: ServerConfig{
			Listen:          DefaultListenAddr,
			MonitorInterval: 30 * time.Second,
		},
		State: StateConfig{
			Dir: DefaultStateDir,
		},
	}
}

// Load reads config.toml at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Provider.E2BAPIKey = envStr("E2B_API_KEY", c.Provider.E2BAPIKey)
	c.Provider.Kind = envStr("FORAGE_PREVIEW_PROVIDER", c.Provider.Kind)
	c.Server.Listen = envStr("FORAGE_PREVIEW_LISTEN", c.Server.Listen)
	c.Server.APIKey = envStr("FORAGE_PREVIEW_API_KEY", c.Server.APIKey)
	c.State.Dir = envStr("FORAGE_PREVIEW_STATE_DIR", c.State.Dir)
	c.Sandbox.TimeoutMinutes = envInt("FORAGE_PREVIEW_TIMEOUT_MINUTES", c.Sandbox.TimeoutMinutes)
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Sandbox.TimeoutMinutes < 1 {
		return fmt.Errorf("sandbox.timeout_minutes must be positive (got %d)", c.Sandbox.TimeoutMinutes)
	}
	if c.Sandbox.AppPort < 1 || c.Sandbox.AppPort > 65535 {
		return fmt.Errorf("sandbox.app_port must be between 1 and 65535 (got %d)", c.Sandbox.AppPort)
	}
	if c.Sandbox.AppDir == "" || !filepath.IsAbs(c.Sandbox.AppDir) {
		return fmt.Errorf("sandbox.app_dir must be an absolute path (got %q)", c.Sandbox.AppDir)
	}

	validKinds := map[string]bool{ProviderAuto: true, ProviderE2B: true, ProviderDocker: true, "": true}
	if !validKinds[c.Provider.Kind] {
		return fmt.Errorf("invalid provider.kind: %s (must be auto, e2b, or docker)", c.Provider.Kind)
	}

	if c.Install.MaxAttempts < 1 {
		return fmt.Errorf("install.max_attempts must be at least 1 (got %d)", c.Install.MaxAttempts)
	}
	if c.Install.AttemptTimeout <= 0 {
		return fmt.Errorf("install.attempt_timeout must be positive")
	}
	if c.DevServer.MaxAttempts < 1 {
		return fmt.Errorf("devserver.max_attempts must be at least 1 (got %d)", c.DevServer.MaxAttempts)
	}
	if c.Install.BackoffBase < 0 || c.Install.BackoffJitter < 0 {
		return fmt.Errorf("install backoff durations cannot be negative")
	}
	if c.Server.MonitorInterval < 0 {
		return fmt.Errorf("server.monitor_interval cannot be negative")
	}
	if c.Readiness.SafetyFactor < 1 {
		return fmt.Errorf("readiness.safety_factor must be at least 1 (got %g)", c.Readiness.SafetyFactor)
	}

	return nil
}

// ResolveProviderKind turns "auto" into a concrete backend.
func (c *Config) ResolveProviderKind() string {
	switch c.Provider.Kind {
	case ProviderE2B, ProviderDocker:
		return c.Provider.Kind
	}
	if c.Provider.E2BAPIKey != "" {
		return ProviderE2B
	}
	return ProviderDocker
}

// AuditPath returns the JSONL audit log location.
func (c *Config) AuditPath() string {
	return filepath.Join(c.State.Dir, "events.jsonl")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
