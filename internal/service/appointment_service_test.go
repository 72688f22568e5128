package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bookflow/internal/database"
	"bookflow/internal/events"
	"bookflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAppointmentService(t *testing.T, maxAge time.Duration) (*AppointmentService, *mockAPI, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "cache.db"), nopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := new(mockAPI)
	return NewAppointmentService(m, db, maxAge, nopLogger()), m, db
}

func historyEntry(id string, start time.Time, status string) models.Appointment {
	return models.Appointment{
		ID:          id,
		Service:     taxReview,
		StaffMember: mia,
		Start:       start,
		End:         start.Add(30 * time.Minute),
		TimeZone:    toronto,
		Status:      status,
	}
}

func TestAppointmentServiceOrdering(t *testing.T) {
	svc, m, _ := setupAppointmentService(t, 0)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	m.On("ListAppointments", mock.Anything, int64(1)).Return([]models.Appointment{
		historyEntry("past-old", now.Add(-72*time.Hour), models.StatusCompleted),
		historyEntry("later", now.Add(48*time.Hour), models.StatusConfirmed),
		historyEntry("past-recent", now.Add(-2*time.Hour), models.StatusCancelled),
		historyEntry("soon", now.Add(time.Hour), models.StatusPending),
		historyEntry("ongoing", now.Add(-10*time.Minute), models.StatusConfirmed),
	}, nil).Once()

	list, err := svc.List(context.Background(), 1)
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"ongoing", "soon", "later", "past-recent", "past-old"}, ids)
}

func TestAppointmentServiceUsesCache(t *testing.T) {
	svc, m, _ := setupAppointmentService(t, time.Hour)
	ctx := context.Background()
	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	m.On("ListAppointments", mock.Anything, int64(1)).Return([]models.Appointment{historyEntry("a1", start, models.StatusPending)}, nil)

	for i := 0; i < 3; i++ {
		list, err := svc.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a1", list[0].ID)
	}
	m.AssertNumberOfCalls(t, "ListAppointments", 1)
}

func TestAppointmentServiceMaxAge(t *testing.T) {
	svc, m, _ := setupAppointmentService(t, time.Minute)
	m.On("ListAppointments", mock.Anything, int64(1)).Return([]models.Appointment{}, nil)

	_, err := svc.List(context.Background(), 1)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.List(context.Background(), 1)
	require.NoError(t, err)
	m.AssertNumberOfCalls(t, "ListAppointments", 2)
}

func TestAppointmentServiceInvalidatedByEvents(t *testing.T) {
	svc, m, db := setupAppointmentService(t, 0)
	ctx := context.Background()
	bus := events.NewEventBus()
	svc.Subscribe(bus)

	m.On("ListAppointments", mock.Anything, int64(1)).Return([]models.Appointment{}, nil)
	_, err := svc.List(ctx, 1)
	require.NoError(t, err)

	_, stale, err := db.CacheState(ctx, 1)
	require.NoError(t, err)
	require.False(t, stale)

	require.NoError(t, bus.PublishJSON(events.EventAppointmentCreated, events.AppointmentEventPayload{SessionID: 1, AppointmentID: "x"}))
	_, stale, err = db.CacheState(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stale)

	_, err = svc.List(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, bus.PublishJSON(events.EventAppointmentsInvalidated, events.SessionEventPayload{SessionID: 1}))
	_, err = svc.List(ctx, 1)
	require.NoError(t, err)

	m.AssertNumberOfCalls(t, "ListAppointments", 3)
}

func TestAppointmentServiceFetchError(t *testing.T) {
	svc, m, _ := setupAppointmentService(t, 0)
	m.On("ListAppointments", mock.Anything, int64(1)).Return(nil, errors.New("503 service unavailable")).Once()

	_, err := svc.List(context.Background(), 1)
	assert.ErrorContains(t, err, "fetch appointments")
}

func TestAppointmentServiceScopesBySession(t *testing.T) {
	svc, m, db := setupAppointmentService(t, 0)
	ctx := context.Background()
	bus := events.NewEventBus()
	svc.Subscribe(bus)
	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	m.On("ListAppointments", mock.Anything, int64(123)).
		Return([]models.Appointment{historyEntry("mine", start, models.StatusConfirmed)}, nil)
	m.On("ListAppointments", mock.Anything, int64(999)).Return([]models.Appointment{}, nil)

	list, err := svc.List(ctx, 123)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].ID)

	list, err = svc.List(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, list)

	// a booking by 999 leaves 123's cache fresh
	require.NoError(t, bus.PublishJSON(events.EventAppointmentCreated, events.AppointmentEventPayload{SessionID: 999, AppointmentID: "theirs"}))
	_, stale, err := db.CacheState(ctx, 123)
	require.NoError(t, err)
	assert.False(t, stale)
	_, stale, err = db.CacheState(ctx, 999)
	require.NoError(t, err)
	assert.True(t, stale)

	_, err = svc.List(ctx, 123)
	require.NoError(t, err)
	m.AssertNumberOfCalls(t, "ListAppointments", 2)
}
