// Package audit provides structured event logging for preview sessions.
// Events are appended to a single JSON Lines (JSONL) file in the state
// directory and filtered by session when read back.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventCreate    EventType = "create"
	EventScaffold  EventType = "scaffold"
	EventInstall   EventType = "install"
	EventServer    EventType = "server"
	EventReadiness EventType = "readiness"
	EventReady     EventType = "ready"
	EventFailed    EventType = "failed"
	EventDestroy   EventType = "destroy"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Session   string    `json:"session,omitempty"`
	Level     string    `json:"level,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// FromBusEvent converts a progress event into an audit entry.
func FromBusEvent(ev events.Event) Event {
	level := string(ev.Level)
	if level == string(events.LevelInfo) {
		level = ""
	}
	return Event{
		Timestamp: ev.Time,
		Type:      EventType(ev.Stage),
		Session:   ev.Session,
		Level:     level,
		Attempt:   ev.Attempt,
		Details:   ev.Message,
	}
}

// Logger writes and reads audit events.
// Events are stored in {stateDir}/events.jsonl.
type Logger struct {
	mu       sync.Mutex
	stateDir string
}

// NewLogger creates a new audit logger rooted at stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{stateDir: stateDir}
}

// Path returns the JSONL event log location.
func (l *Logger) Path() string {
	return filepath.Join(l.stateDir, "events.jsonl")
}

// Log appends an event to the audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, session, details string) error {
	return l.Log(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Session:   session,
		Details:   details,
	})
}

// Follow writes every event received on ch until it is closed. Write
// failures are logged and do not stop the loop.
func (l *Logger) Follow(ch <-chan events.Event) {
	for ev := range ch {
		if err := l.Log(FromBusEvent(ev)); err != nil {
			logging.Warn("failed to write audit event", "stage", ev.Stage, "error", err)
		}
	}
}

// Events reads the events for a session in chronological order. An empty
// session returns every event.
func (l *Logger) Events(session string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var result []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		if session != "" && event.Session != session {
			continue
		}
		result = append(result, event)
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("error reading audit log: %w", err)
	}

	return result, nil
}

// Recent returns the last n events across all sessions.
func (l *Logger) Recent(n int) ([]Event, error) {
	all, err := l.Events("")
	if err != nil {
		return all, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
