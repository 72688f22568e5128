package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventAppointmentCreated      = "appointment_created"
	EventBookingReset            = "booking_reset"
	EventAppointmentsInvalidated = "appointments_invalidated"
)

// AppointmentEventPayload is published once the backend confirms a booking.
type AppointmentEventPayload struct {
	SessionID     int64     `json:"session_id"`
	AppointmentID string    `json:"appointment_id"`
	ServiceName   string    `json:"service_name"`
	StaffName     string    `json:"staff_name"`
	Start         time.Time `json:"start"`
	Status        string    `json:"status"`
}

// SessionEventPayload identifies the chat session an event relates to.
type SessionEventPayload struct {
	SessionID int64 `json:"session_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into dst.
func (e *Event) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler is notified when a subscriber fails.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets a callback for handler failures; by default they are dropped.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
