package manager

import "time"

// Event represents an orchestrator lifecycle event.
// Minimal and stable: name + model key and optional fields.
type Event struct {
	At     time.Time
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
