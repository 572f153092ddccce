package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stage names the bootstrap step an event belongs to.
type Stage string

const (
	StageCreate    Stage = "create"
	StageScaffold  Stage = "scaffold"
	StageInstall   Stage = "install"
	StageServer    Stage = "server"
	StageReadiness Stage = "readiness"
	StageReady     Stage = "ready"
	StageFailed    Stage = "failed"
	StageDestroy   Stage = "destroy"
)

// Level is the severity of an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one progress update from a bootstrap or teardown.
type Event struct {
	Time    time.Time `json:"time"`
	Session string    `json:"session,omitempty"`
	Stage   Stage     `json:"stage"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Attempt int       `json:"attempt,omitempty"`
	URL     string    `json:"url,omitempty"`
}

// Terminal reports whether the event ends a bootstrap.
func (e Event) Terminal() bool {
	return e.Stage == StageReady || e.Stage == StageFailed
}

// Bus fans events out to subscribers. Slow subscribers lose events rather
// than block the publisher. A nil *Bus discards everything.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	closed  bool
	dropped atomic.Int64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Level == "" {
		ev.Level = LevelInfo
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel receiving future events and a function that
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() int {
	return int(b.dropped.Load())
}

// Close closes every subscriber channel. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
