package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelA()
	defer cancelB()

	bus.Publish(Event{Stage: StageInstall, Message: "attempt 1", Attempt: 1})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Stage != StageInstall || ev.Attempt != 1 {
				t.Errorf("%s got %+v", name, ev)
			}
			if ev.Time.IsZero() {
				t.Errorf("%s: Publish should stamp the time", name)
			}
			if ev.Level != LevelInfo {
				t.Errorf("%s: Level = %q, want info", name, ev.Level)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the event", name)
		}
	}
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{Stage: StageCreate})
	bus.Publish(Event{Stage: StageScaffold})
	bus.Publish(Event{Stage: StageInstall})

	if got := bus.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if ev := <-ch; ev.Stage != StageCreate {
		t.Errorf("first event = %q, want create", ev.Stage)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	bus.Publish(Event{Stage: StageReady})
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)

	bus.Close()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	late, _ := bus.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus should return a closed channel")
	}
	bus.Publish(Event{Stage: StageReady})
}

func TestBus_Nil(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Stage: StageReady})
}

func TestEvent_Terminal(t *testing.T) {
	tests := []struct {
		stage Stage
		want  bool
	}{
		{StageReady, true},
		{StageFailed, true},
		{StageInstall, false},
		{StageDestroy, false},
	}
	for _, tt := range tests {
		if got := (Event{Stage: tt.stage}).Terminal(); got != tt.want {
			t.Errorf("Terminal(%q) = %v, want %v", tt.stage, got, tt.want)
		}
	}
}
