// Package testutil provides test utilities for integration tests
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/bootstrap"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/config"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/retry"
)

// TestPID is the dev server pid reported by the test environment.
const TestPID = 4242

// TestEnv holds the test environment
type TestEnv struct {
	T        *testing.T
	TmpDir   string
	Config   *config.Config
	Provider *provider.MockProvider
	App      *app.App
}

// NewTestEnv creates an App backed by a mock provider whose dev server
// starts on the first attempt. Waits are skipped and the audit log lives in
// a temp dir. The app is closed when the test ends.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.State.Dir = tmpDir

	mock := provider.NewMockProvider()
	mock.OnExec(bootstrap.LaunchLine, provider.Exit(0, fmt.Sprintf("%d\n", TestPID), ""))

	testApp, err := app.New(
		app.WithConfig(cfg),
		app.WithProvider(mock),
		app.WithSleeper(retry.NoSleep),
	)
	if err != nil {
		t.Fatalf("Failed to create test app: %v", err)
	}
	t.Cleanup(func() { testApp.Close(context.Background()) })

	return &TestEnv{
		T:        t,
		TmpDir:   tmpDir,
		Config:   cfg,
		Provider: mock,
		App:      testApp,
	}
}

// Bootstrap runs a bootstrap and fails the test on error.
func (e *TestEnv) Bootstrap() *bootstrap.Result {
	e.T.Helper()

	res, err := e.App.Bootstrap(context.Background())
	if err != nil {
		e.T.Fatalf("Bootstrap() error: %v", err)
	}
	return res
}

// FailInstall makes every npm install attempt exit non-zero.
func (e *TestEnv) FailInstall() {
	e.Provider.OnExec("npm install", provider.Exit(1, "", "npm ERR! code ETIMEDOUT"))
}

// FailDevServer makes the dev server die before its liveness probe.
func (e *TestEnv) FailDevServer() {
	e.Provider.OnExec("kill -0", provider.Exit(1, "", ""))
	e.Provider.OnExec("tail -c", provider.Exit(0, "Error: listen EADDRINUSE", ""))
}
