package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingReset, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventBookingReset, SessionEventPayload{SessionID: 42}))

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingReset, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded SessionEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, int64(42), decoded.SessionID)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusHandlerError(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")

	var reported error
	bus.OnError(func(_ *Event, err error) { reported = err })

	var secondCalled bool
	bus.Subscribe("event", func(_ *Event) error { return boom })
	bus.Subscribe("event", func(_ *Event) error { secondCalled = true; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.ErrorIs(t, reported, boom)
	assert.True(t, secondCalled, "failing handler must not stop the others")
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() { bus.Publish(&Event{Type: "unknown"}) })
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewJSONEvent(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	event, err := NewJSONEvent(EventAppointmentCreated, AppointmentEventPayload{
		SessionID:     7,
		AppointmentID: "appt-1",
		Start:         start,
	})
	require.NoError(t, err)
	assert.Equal(t, EventAppointmentCreated, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded AppointmentEventPayload
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, "appt-1", decoded.AppointmentID)
	assert.True(t, start.Equal(decoded.Start))

	_, err = NewJSONEvent("bad", make(chan int))
	assert.Error(t, err)
}
