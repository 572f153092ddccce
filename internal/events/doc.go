// Package events carries bootstrap progress from the orchestrator to
// whoever is watching: the audit log, websocket clients and the terminal
// progress view.
package events
