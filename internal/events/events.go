package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Domain event types. The type doubles as the AMQP routing key.
const (
	BookingCreated          = "booking.created"
	BookingCancelled        = "booking.cancelled"
	BookingApproved         = "booking.approved"
	BookingRejected         = "booking.rejected"
	ParkingRegistered       = "parking.registered"
	ParkingReserved         = "parking.reserved"
	ParkingEntered          = "parking.entered"
	ParkingExited           = "parking.exited"
	ParkingCancelled        = "parking.cancelled"
	ParkingCapacityRejected = "parking.capacity_rejected"
	VenueChanged            = "venue.changed"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	all         []EventHandler
	mu          sync.RWMutex
	onError     func(Event, error)
}

// NewEventBus constructs an empty bus. onError may be nil.
func NewEventBus(onError func(Event, error)) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), onError: onError}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish marshals payload and notifies subscribers of the event type.
// Handler failures never reach the caller.
func (b *EventBus) Publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	event := Event{ID: uuid.NewString(), Type: eventType, Payload: data, CreatedAt: time.Now()}
	if err != nil {
		b.report(event, err)
		return
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[eventType]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(ctx, event); err != nil {
			b.report(event, err)
		}
	}
}

func (b *EventBus) report(event Event, err error) {
	if b.onError != nil {
		b.onError(event, err)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) {}
