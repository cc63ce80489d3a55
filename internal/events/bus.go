/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventVesselCreated EventType = "vessel.created"
	EventVesselUpdated EventType = "vessel.updated"
	EventVesselDeleted EventType = "vessel.deleted"

	EventTaskCreated EventType = "task.created"
	EventTaskUpdated EventType = "task.updated"
	EventTaskDeleted EventType = "task.deleted"

	EventProjectUpdated  EventType = "project.updated"
	EventProjectImported EventType = "project.imported"
	EventProjectReset    EventType = "project.reset"
	EventSnapshotSaved   EventType = "project.snapshot_saved"

	// Emitted after every timeline build, cached or not.
	EventTimelineBuilt EventType = "timeline.built"
)

// AllTypes lists every event type, for subscribers that want the full stream.
var AllTypes = []EventType{
	EventVesselCreated,
	EventVesselUpdated,
	EventVesselDeleted,
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskDeleted,
	EventProjectUpdated,
	EventProjectImported,
	EventProjectReset,
	EventSnapshotSaved,
	EventTimelineBuilt,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Broker is implemented by the in-process Bus and by distributed buses.
type Broker interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events
// rather than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
