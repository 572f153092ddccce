// Package health summarizes the state of the preview session.
//
// # Health Status
//
//	StatusReady      - Bootstrap finished, dependencies installed, server up
//	StatusDegraded   - Server up but dependency install exhausted its retries
//	StatusNotServing - Dev server failed to start or has since died
//	StatusStarting   - Bootstrap still in progress
//	StatusExpired    - Environment passed its expiry
//	StatusNone       - No session
//
// # Check Functions
//
//	health.GetSummary(sess, now)           // from recorded state only
//	health.CheckServer(ctx, p, sess)       // kill -0 against the dev server pid
//	result := health.Check(ctx, sess, p, now)
//	// result.Status, .Uptime, .ExpiresIn, .ServerAlive
package health
