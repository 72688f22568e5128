package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/logging"
	"bookflow/internal/models"

	"github.com/rs/zerolog"
)

// AppointmentService serves each session's read-only appointment history from
// the local cache, refetching from the backend when that session's cache is
// stale or too old.
type AppointmentService struct {
	api    domain.SchedulingAPI
	store  domain.AppointmentStore
	maxAge time.Duration
	logger *zerolog.Logger
	now    func() time.Time
}

// NewAppointmentService builds the service; a zero maxAge only refetches after invalidation.
func NewAppointmentService(schedulingAPI domain.SchedulingAPI, store domain.AppointmentStore, maxAge time.Duration, logger *zerolog.Logger) *AppointmentService {
	return &AppointmentService{
		api:    schedulingAPI,
		store:  store,
		maxAge: maxAge,
		logger: logging.Component(logger, "appointments"),
		now:    time.Now,
	}
}

// List returns the session's upcoming appointments soonest first, followed by
// past ones most recent first.
func (s *AppointmentService) List(ctx context.Context, sessionID int64) ([]models.Appointment, error) {
	refresh, err := s.needsRefresh(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("session_id", sessionID).Msg("failed to read appointment cache state")
		refresh = true
	}

	if refresh {
		if err := s.Refresh(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	list, err := s.store.ListAppointments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read cached appointments: %w", err)
	}
	sortAppointments(list, s.now())
	return list, nil
}

// Refresh refetches the session's history from the backend and replaces its cache.
func (s *AppointmentService) Refresh(ctx context.Context, sessionID int64) error {
	fresh, err := s.api.ListAppointments(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetch appointments: %w", err)
	}
	if err := s.store.ReplaceAppointments(ctx, sessionID, fresh); err != nil {
		return fmt.Errorf("cache appointments: %w", err)
	}
	s.logger.Debug().Int64("session_id", sessionID).Int("count", len(fresh)).Msg("appointment cache refreshed")
	return nil
}

// Invalidate makes the session's next List refetch.
func (s *AppointmentService) Invalidate(ctx context.Context, sessionID int64) error {
	return s.store.MarkStale(ctx, sessionID)
}

// Subscribe invalidates the owning session's cache whenever a booking is
// created or acknowledged.
func (s *AppointmentService) Subscribe(bus *events.EventBus) {
	handler := func(ev *events.Event) error {
		var payload events.SessionEventPayload
		if err := ev.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return s.Invalidate(context.Background(), payload.SessionID)
	}
	bus.Subscribe(events.EventAppointmentCreated, handler)
	bus.Subscribe(events.EventAppointmentsInvalidated, handler)
}

func (s *AppointmentService) needsRefresh(ctx context.Context, sessionID int64) (bool, error) {
	refreshedAt, stale, err := s.store.CacheState(ctx, sessionID)
	if err != nil {
		return true, err
	}
	if stale || refreshedAt.IsZero() {
		return true, nil
	}
	return s.maxAge > 0 && s.now().Sub(refreshedAt) > s.maxAge, nil
}

func sortAppointments(list []models.Appointment, now time.Time) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		aUpcoming := !a.End.Before(now)
		bUpcoming := !b.End.Before(now)
		if aUpcoming != bUpcoming {
			return aUpcoming
		}
		if aUpcoming {
			return a.Start.Before(b.Start)
		}
		return a.Start.After(b.Start)
	})
}
