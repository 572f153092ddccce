package testutil

import (
	"embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
)

//go:embed fixtures/*.toml
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// FixturePath writes a fixture into a temp dir and returns its path.
func FixturePath(t *testing.T, name string) string {
	t.Helper()
	data, err := LoadFixture(name)
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// ValidConfig loads the valid config fixture through config.Load.
func ValidConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(FixturePath(t, "valid_config.toml"))
	if err != nil {
		t.Fatalf("failed to load valid config fixture: %v", err)
	}
	return cfg
}
