// Package publish emits harvested-document events for downstream indexing.
package publish

import "context"

// Event describes one harvested document. Payload is marshaled to JSON and
// the remaining fields travel as message attributes.
type Event struct {
	DocType    string
	NaturalKey string
	SourceURL  string
	Payload    any
}

// Publisher delivers events to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, ev Event) (string, error)
}

// Noop discards events. Used when no topic is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) (string, error) { return "", nil }
