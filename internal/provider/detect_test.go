package provider

import (
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
)

func TestNew_E2B(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderAuto
	cfg.Provider.E2BAPIKey = "e2b_key"

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e2b, ok := p.(*E2BProvider)
	if !ok {
		t.Fatalf("New() = %T, want *E2BProvider", p)
	}
	if e2b.Domain != "e2b.app" || e2b.Template != config.DefaultTemplate {
		t.Errorf("provider = %+v", e2b)
	}
}

func TestNew_E2BWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderE2B

	if _, err := New(cfg); err == nil {
		t.Error("New() should require an API key for e2b")
	}
}

func TestNew_DockerExplicitCommand(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderDocker
	cfg.Provider.DockerCommand = "podman"

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	docker, ok := p.(*DockerProvider)
	if !ok {
		t.Fatalf("New() = %T, want *DockerProvider", p)
	}
	if docker.Name() != "podman" || docker.ContainerPrefix != config.ContainerPrefix {
		t.Errorf("provider = %+v", docker)
	}
}

func TestCommand_EnvList(t *testing.T) {
	cmd := Command{Env: map[string]string{"B": "2", "A": "1"}}
	got := cmd.EnvList()
	if len(got) != 2 || got[0] != "A=1" || got[1] != "B=2" {
		t.Errorf("EnvList() = %q", got)
	}
}

func TestIsGone(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Error: No such container: x", true},
		{"sandbox not found", true},
		{"404 Not Found", true},
		{"permission denied", false},
	}
	for _, tt := range tests {
		if got := isGone(tt.msg); got != tt.want {
			t.Errorf("isGone(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
