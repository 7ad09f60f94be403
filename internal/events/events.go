// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"sync"
	"time"
)

// Routing keys.
const (
	UserRegistered = "user.registered"
	UserVerified   = "user.verified"
	LeadConverted  = "lead.converted"
)

// Envelope is the JSON body of every published event.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher emits events keyed by routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, data any) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// Memory keeps published events in order. It is meant for tests.
type Memory struct {
	mu     sync.Mutex
	events []Envelope
}

func (m *Memory) Publish(_ context.Context, key string, data any) error {
	m.mu.Lock()
	m.events = append(m.events, Envelope{Type: key, OccurredAt: time.Now().UTC(), Data: data})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of what has been published so far.
func (m *Memory) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Envelope(nil), m.events...)
}

// Types returns the routing keys published so far.
func (m *Memory) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}
