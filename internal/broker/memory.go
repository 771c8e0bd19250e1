// Package broker holds Publisher implementations that are not tied to the
// WebSocket hub.
package broker

import (
	"context"
	"sync"

	"github.com/quocanhngo/lighttalk/internal/model"
)

// Publisher delivers an event to everyone subscribed to a destination
type Publisher interface {
	Publish(ctx context.Context, destination string, event model.ChatEvent) error
}

// Delivery is one recorded publish
type Delivery struct {
	Destination string
	Event       model.ChatEvent
}

// MemoryBus records every publish in process. The seeder uses it when no hub
// is running and tests use it to assert on fan-out.
type MemoryBus struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, destination string, event model.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, Delivery{Destination: destination, Event: event})
	return nil
}

// Deliveries returns a snapshot of everything published so far
func (b *MemoryBus) Deliveries() []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Delivery, len(b.deliveries))
	copy(out, b.deliveries)
	return out
}

// To returns the events published to one destination, in publish order
func (b *MemoryBus) To(destination string) []model.ChatEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var events []model.ChatEvent
	for _, d := range b.deliveries {
		if d.Destination == destination {
			events = append(events, d.Event)
		}
	}
	return events
}

func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = nil
}
