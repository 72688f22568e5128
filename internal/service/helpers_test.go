package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

const toronto = "America/Toronto"

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) FetchAvailability(ctx context.Context, req domain.AvailabilityRequest) ([]models.AvailableSlot, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AvailableSlot), args.Error(1)
}

func (m *mockAPI) CreateAppointment(ctx context.Context, req domain.CreateAppointmentRequest, key string) (*models.Appointment, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *mockAPI) ListAppointments(ctx context.Context, sessionID int64) ([]models.Appointment, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appointment), args.Error(1)
}

func (m *mockAPI) ListServices(ctx context.Context) ([]models.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Service), args.Error(1)
}

func (m *mockAPI) ListStaff(ctx context.Context, serviceID string) ([]models.StaffMember, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StaffMember), args.Error(1)
}

// recordingBus counts published events by type.
type recordingBus struct {
	mu     sync.Mutex
	counts map[string]int
	last   map[string]any
}

func newRecordingBus() *recordingBus {
	return &recordingBus{counts: map[string]int{}, last: map[string]any{}}
}

func (b *recordingBus) PublishJSON(eventType string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[eventType]++
	b.last[eventType] = payload
	return nil
}

func (b *recordingBus) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[eventType]
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

var (
	taxReview = models.Service{ID: "svc-1", Name: "Tax review", DurationMinutes: 30, InPerson: true}
	mia       = models.StaffMember{ID: "m1", Name: "Mia"}
	noah      = models.StaffMember{ID: "m2", Name: "Noah"}
)

func slotAt(start time.Time, staff ...models.StaffMember) models.AvailableSlot {
	return models.AvailableSlot{
		StartTimeUTC:   start,
		EndTimeUTC:     start.Add(30 * time.Minute),
		AvailableStaff: staff,
	}
}

// completeDraft is a draft that passes every guard.
func completeDraft() models.BookingDraft {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	return models.BookingDraft{
		Service:     models.Ptr(taxReview),
		StaffMember: models.Ptr(mia),
		Start:       models.Ptr(start),
		End:         models.Ptr(start.Add(30 * time.Minute)),
		TimeZone:    models.Ptr(toronto),
	}
}

type sessionFixture struct {
	api       *mockAPI
	bus       *recordingBus
	draft     *DraftStore
	selection *SlotSelection
	query     *AvailabilityQuery
	wizard    *Wizard
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	api := new(mockAPI)
	bus := newRecordingBus()
	draft := NewDraftStore(1, nil, bus, nopLogger())
	selection := NewSlotSelection(draft, FirstStaffPicker{})
	return &sessionFixture{
		api:       api,
		bus:       bus,
		draft:     draft,
		selection: selection,
		query:     NewAvailabilityQuery(api, draft, selection, nopLogger()),
		wizard:    NewWizard(draft, NewBookingService(api, bus, nopLogger()), bus, nopLogger()),
	}
}

var _ domain.EventPublisher = (*recordingBus)(nil)
var _ domain.EventPublisher = (*events.EventBus)(nil)
