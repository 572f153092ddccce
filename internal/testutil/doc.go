// Package testutil provides test fixtures and utilities.
//
// # Test Environment
//
// NewTestEnv builds an app.App around a provider.MockProvider with waits
// collapsed, so a full bootstrap runs in microseconds:
//
//	env := testutil.NewTestEnv(t)
//	env.FailInstall()
//	res := env.Bootstrap()
//	// res.Session.Install == session.InstallDegraded
//
// # Fixtures
//
// TOML config fixtures are embedded using go:embed:
//
//	fixtures/valid_config.toml
//	fixtures/invalid_config.toml
//
// FixturePath writes one into a temp dir so it can go through config.Load,
// and ValidConfig loads the valid one directly.
package testutil
