// Package retry runs an operation a bounded number of times with
// exponential backoff and jitter.
//
// The delay after zero-based attempt n is
//
//	Base * 2^n + uniform(0, Jitter)
//
// and is never applied after the final attempt. The sleeper is injected so
// tests can run the full schedule without waiting.
package retry
