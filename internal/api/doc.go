// Package api serves the preview HTTP API and provides a client for it.
//
// # Routes
//
//	GET    /health               server liveness, no auth
//	POST   /api/sandbox          bootstrap a new sandbox (replaces the current one)
//	GET    /api/sandbox          active session and its health
//	DELETE /api/sandbox          destroy the active session
//	GET    /api/sandbox/files    manifest of files written into the session
//	GET    /api/sandbox/logs     tail of the dev server output (?lines=N)
//	GET    /api/sandbox/events   websocket stream of bootstrap events
//
// Routes under /api require "Authorization: Bearer <key>" when the server
// has an API key configured.
//
// # Responses
//
// A successful bootstrap returns
//
//	{"success": true, "sessionId": "...", "url": "https://...", "message": "..."}
//
// and every failure returns
//
//	{"error": "...", "details": "..."}
//
// with a 500 for bootstrap failures and a 404 when there is no session.
package api
