// Package app provides the application context for forage-preview.
//
// This package wires the preview dependencies together using the
// functional options pattern, enabling easy testing through dependency
// injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Config       *config.Config          // Loaded configuration
//	    Provider     provider.Provider       // Sandbox backend
//	    Store        *session.Store          // The single active session
//	    Bus          *events.Bus             // Progress events
//	    Audit        *audit.Logger           // JSONL event log
//	    Bootstrapper *bootstrap.Bootstrapper // Bootstrap pipeline
//	}
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	app, err := app.New(app.WithConfig(cfg))
//
//	// Testing with custom dependencies
//	app, err := app.New(
//	    app.WithProvider(provider.NewMockProvider()),
//	    app.WithSleeper(retry.NoSleep),
//	    app.WithoutAudit(),
//	)
//
// Every bus event is appended to the audit log until Close.
package app
