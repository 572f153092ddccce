package audit

import (
	"os"
	"testing"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
)

func TestLogger_LogAndEvents(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	now := time.Now().Truncate(time.Millisecond)

	entries := []Event{
		{Timestamp: now, Type: EventCreate, Session: "isb1", Details: "provider=e2b"},
		{Timestamp: now.Add(time.Second), Type: EventScaffold, Session: "isb1"},
		{Timestamp: now.Add(2 * time.Second), Type: EventInstall, Session: "isb1", Attempt: 2, Level: "warn", Details: "ECONNRESET"},
		{Timestamp: now.Add(3 * time.Second), Type: EventReady, Session: "isb1"},
	}

	for _, e := range entries {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	result, err := logger.Events("isb1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(result) != len(entries) {
		t.Fatalf("got %d events, want %d", len(result), len(entries))
	}

	for i, e := range result {
		if e.Type != entries[i].Type {
			t.Errorf("event %d: type = %q, want %q", i, e.Type, entries[i].Type)
		}
		if e.Session != entries[i].Session {
			t.Errorf("event %d: session = %q, want %q", i, e.Session, entries[i].Session)
		}
		if e.Details != entries[i].Details {
			t.Errorf("event %d: details = %q, want %q", i, e.Details, entries[i].Details)
		}
		if e.Attempt != entries[i].Attempt {
			t.Errorf("event %d: attempt = %d, want %d", i, e.Attempt, entries[i].Attempt)
		}
	}
}

func TestLogger_EventsEmpty(t *testing.T) {
	logger := NewLogger(t.TempDir())

	result, err := logger.Events("nonexistent")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("got %d events, want 0", len(result))
	}
}

func TestLogger_FiltersBySession(t *testing.T) {
	logger := NewLogger(t.TempDir())

	logger.LogEvent(EventCreate, "first", "")
	logger.LogEvent(EventDestroy, "first", "replaced")
	logger.LogEvent(EventCreate, "second", "")

	first, _ := logger.Events("first")
	if len(first) != 2 {
		t.Errorf("first has %d events, want 2", len(first))
	}
	all, _ := logger.Events("")
	if len(all) != 3 {
		t.Errorf("all has %d events, want 3", len(all))
	}
}

func TestLogger_LogEvent(t *testing.T) {
	logger := NewLogger(t.TempDir())

	if err := logger.LogEvent(EventCreate, "isb1", "provider=docker"); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	got, err := logger.Events("isb1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}

	e := got[0]
	if e.Type != EventCreate || e.Details != "provider=docker" {
		t.Errorf("event = %+v", e)
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp should be set automatically")
	}
}

func TestLogger_SkipsMalformedLines(t *testing.T) {
	logger := NewLogger(t.TempDir())
	logger.LogEvent(EventCreate, "s", "")

	f, err := os.OpenFile(logger.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n\n")
	f.Close()
	logger.LogEvent(EventReady, "s", "")

	got, err := logger.Events("s")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d events, want 2", len(got))
	}
}

func TestLogger_Recent(t *testing.T) {
	logger := NewLogger(t.TempDir())
	for i := 0; i < 5; i++ {
		logger.Log(Event{Type: EventInstall, Session: "s", Attempt: i + 1})
	}

	got, err := logger.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Attempt != 4 || got[1].Attempt != 5 {
		t.Errorf("Recent(2) = %+v", got)
	}
}

func TestLogger_Follow(t *testing.T) {
	logger := NewLogger(t.TempDir())
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(8)

	done := make(chan struct{})
	go func() {
		logger.Follow(ch)
		close(done)
	}()

	bus.Publish(events.Event{Session: "isb1", Stage: events.StageInstall, Level: events.LevelWarn, Attempt: 1, Message: "exit 1"})
	bus.Publish(events.Event{Session: "isb1", Stage: events.StageReady, Message: "https://5173-isb1.e2b.app"})
	cancel()
	<-done

	got, err := logger.Events("isb1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != EventInstall || got[0].Level != "warn" || got[0].Attempt != 1 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Type != EventReady || got[1].Level != "" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestLogger_EventOrder(t *testing.T) {
	logger := NewLogger(t.TempDir())

	base := time.Now()
	for i := 0; i < 5; i++ {
		logger.Log(Event{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Type:      EventServer,
			Session:   "order-test",
			Details:   string(rune('A' + i)),
		})
	}

	got, _ := logger.Events("order-test")
	if len(got) != 5 {
		t.Fatalf("got %d events, want 5", len(got))
	}

	// Events should be in chronological order (append-only)
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("event %d timestamp before event %d", i, i-1)
		}
	}
}
