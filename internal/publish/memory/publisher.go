// Package memory collects published events in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hklex/lexharvest/internal/publish"
)

// Publisher records events in order of arrival.
type Publisher struct {
	mu     sync.Mutex
	events []publish.Event
}

// New creates an in-memory publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a sequential id.
func (p *Publisher) Publish(_ context.Context, ev publish.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return fmt.Sprintf("mem-%d", len(p.events)), nil
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []publish.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publish.Event, len(p.events))
	copy(out, p.events)
	return out
}
