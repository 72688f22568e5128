package service

import (
	"context"
	"sync"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/logging"
	"bookflow/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const persistTimeout = 2 * time.Second

// DraftStore holds one session's in-progress booking. Reads are synchronous and
// always reflect the latest write. Snapshots are mirrored to the repository on a
// best-effort basis.
type DraftStore struct {
	mu             sync.RWMutex
	sessionID      int64
	draft          models.BookingDraft
	step           models.Step
	idempotencyKey string

	repo   domain.DraftRepository
	events domain.EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
}

// NewDraftStore creates an empty store. repo and publisher may be nil.
func NewDraftStore(sessionID int64, repo domain.DraftRepository, publisher domain.EventPublisher, logger *zerolog.Logger) *DraftStore {
	return &DraftStore{
		sessionID:      sessionID,
		step:           models.StepSelectService,
		idempotencyKey: uuid.NewString(),
		repo:           repo,
		events:         publisher,
		logger:         logging.Component(logger, "draft_store"),
		now:            time.Now,
	}
}

// UpdateState merges the set fields of patch into the draft. Unset fields of
// patch leave the draft untouched.
func (s *DraftStore) UpdateState(patch models.BookingDraft) {
	s.mu.Lock()
	s.draft = s.draft.Merge(patch)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// ResetBooking clears every field and issues a new idempotency key.
func (s *DraftStore) ResetBooking() {
	s.mu.Lock()
	s.draft = models.BookingDraft{}
	s.step = models.StepSelectService
	s.idempotencyKey = uuid.NewString()
	s.mu.Unlock()

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.repo.ClearDraft(ctx, s.sessionID); err != nil {
			s.logger.Warn().Err(err).Int64("session_id", s.sessionID).Msg("failed to clear draft snapshot")
		}
	}
	if s.events != nil {
		if err := s.events.PublishJSON(events.EventBookingReset, events.SessionEventPayload{SessionID: s.sessionID}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish booking reset")
		}
	}
	s.logger.Debug().Int64("session_id", s.sessionID).Msg("booking draft reset")
}

// ClearSlot unsets start and end only.
func (s *DraftStore) ClearSlot() {
	s.mu.Lock()
	if s.draft.Start == nil && s.draft.End == nil {
		s.mu.Unlock()
		return
	}
	s.draft.Start = nil
	s.draft.End = nil
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// Draft returns a copy of the current draft.
func (s *DraftStore) Draft() models.BookingDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

// IdempotencyKey identifies the current draft to the backend. It only changes on reset.
func (s *DraftStore) IdempotencyKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idempotencyKey
}

func (s *DraftStore) SessionID() int64 {
	return s.sessionID
}

// setStep records the wizard position so it is persisted with the draft.
func (s *DraftStore) setStep(step models.Step) {
	s.mu.Lock()
	if s.step == step {
		s.mu.Unlock()
		return
	}
	s.step = step
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// Restore loads the persisted snapshot, if any, and returns the step it was on.
func (s *DraftStore) Restore(ctx context.Context) (models.Step, bool, error) {
	if s.repo == nil {
		return models.StepSelectService, false, nil
	}
	snapshot, err := s.repo.GetDraft(ctx, s.sessionID)
	if err != nil {
		return models.StepSelectService, false, err
	}
	if snapshot == nil {
		return models.StepSelectService, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = snapshot.Draft.Clone()
	s.step = snapshot.CurrentStep
	if snapshot.IdempotencyKey != "" {
		s.idempotencyKey = snapshot.IdempotencyKey
	}
	return snapshot.CurrentStep, true, nil
}

func (s *DraftStore) snapshotLocked() *models.DraftSnapshot {
	if s.repo == nil {
		return nil
	}
	return &models.DraftSnapshot{
		SessionID:      s.sessionID,
		CurrentStep:    s.step,
		Draft:          s.draft.Clone(),
		IdempotencyKey: s.idempotencyKey,
		UpdatedAt:      s.now().UTC(),
	}
}

func (s *DraftStore) persist(snapshot *models.DraftSnapshot) {
	if snapshot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.repo.SaveDraft(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Int64("session_id", s.sessionID).Msg("failed to persist draft snapshot")
	}
}
