// internal/monitor/event_bus.go
package monitor

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Link event types published on the bus.
const (
	EventConnected      = "connected"
	EventDisconnected   = "disconnected"
	EventFrameSent      = "frame_sent"
	EventTransportFault = "transport_fault"
)

// Event represents one link event
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventBus distributes link events to subscribers
type EventBus struct {
	subscribers []chan Event
	events      chan Event
	closed      bool
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		events: make(chan Event, 256),
		logger: logger.With(zap.String("component", "event-bus")),
	}
}

// Start starts the event bus distribution loop
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Stop closes the bus; pending events are still distributed. Safe to
// call more than once; publishes after Stop are dropped.
func (eb *EventBus) Stop() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	close(eb.events)
}

// Publish publishes an event without blocking the link loop
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	if eb.closed {
		eb.logger.Debug("Event bus stopped, dropping event",
			zap.String("event_type", event.Type),
		)
		return
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
		)
	}
}

// Subscribe returns a channel receiving all future events
func (eb *EventBus) Subscribe() <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 64)
	eb.subscribers = append(eb.subscribers, subscriber)
	return subscriber
}

// distributeEvent distributes an event to all subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
