package manager

import (
	"sync"
	"time"
)

const defaultRingSize = 200

// RingPublisher keeps the most recent events in a fixed-size ring buffer.
type RingPublisher struct {
	mu   sync.RWMutex
	buf  []Event
	next int
	full bool
}

// NewRingPublisher returns a publisher retaining up to size events.
func NewRingPublisher(size int) *RingPublisher {
	if size <= 0 {
		size = defaultRingSize
	}
	return &RingPublisher{buf: make([]Event, size)}
}

func (p *RingPublisher) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	p.mu.Lock()
	p.buf[p.next] = e
	p.next++
	if p.next >= len(p.buf) {
		p.next = 0
		p.full = true
	}
	p.mu.Unlock()
}

// Events returns retained events, oldest first.
func (p *RingPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.full {
		out := make([]Event, 0, len(p.buf))
		out = append(out, p.buf[p.next:]...)
		return append(out, p.buf[:p.next]...)
	}
	return append([]Event(nil), p.buf[:p.next]...)
}

// Named returns retained events with the given name, oldest first.
func (p *RingPublisher) Named(name string) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
