// Package bootstrap brings a preview sandbox up from nothing.
//
// A run replaces the current session, creates an environment, writes the
// project scaffold, installs dependencies, starts the dev server and waits
// for it to settle:
//
//	provisioning -> scaffold-written -> installing -> server-starting -> ready
//
// Creation and scaffold failures abort the run, destroy the partial
// environment and leave no session behind. Install and dev server failures
// are retried with exponential backoff and jitter, then recorded on the
// session as degraded outcomes; the run still returns the sandbox URL.
//
// Runs are serialized. Every stage publishes progress to an events.Bus.
package bootstrap
