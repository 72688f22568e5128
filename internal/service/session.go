package service

import (
	"context"
	"sync"

	"bookflow/internal/domain"
	"bookflow/internal/logging"

	"github.com/rs/zerolog"
)

// Session bundles one chat user's booking state.
type Session struct {
	ID        int64
	Draft     *DraftStore
	Selection *SlotSelection
	Query     *AvailabilityQuery
	Wizard    *Wizard

	restore  sync.Once
	mu       sync.Mutex
	timeZone string
}

// TimeZone is the zone availability is requested and displayed in.
func (s *Session) TimeZone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeZone
}

func (s *Session) SetTimeZone(zone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeZone = zone
}

// SessionManager creates sessions on first use and restores persisted drafts.
type SessionManager struct {
	api         domain.SchedulingAPI
	submitter   Submitter
	repo        domain.DraftRepository
	events      domain.EventPublisher
	newPicker   func() StaffPicker
	defaultZone string
	logger      *zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

type SessionOptions struct {
	API             domain.SchedulingAPI
	Submitter       Submitter
	Repository      domain.DraftRepository
	Events          domain.EventPublisher
	StaffAssignment string
	DefaultTimeZone string
	Logger          *zerolog.Logger
}

func NewSessionManager(opts SessionOptions) *SessionManager {
	policy := opts.StaffAssignment
	return &SessionManager{
		api:         opts.API,
		submitter:   opts.Submitter,
		repo:        opts.Repository,
		events:      opts.Events,
		newPicker:   func() StaffPicker { return NewStaffPicker(policy) },
		defaultZone: opts.DefaultTimeZone,
		logger:      logging.Component(opts.Logger, "sessions"),
		sessions:    make(map[int64]*Session),
	}
}

// Get returns the session for id, creating and restoring it if needed.
func (m *SessionManager) Get(ctx context.Context, id int64) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = m.build(id)
		m.sessions[id] = s
	}
	m.mu.Unlock()

	s.restore.Do(func() {
		step, found, err := s.Draft.Restore(ctx)
		switch {
		case err != nil:
			m.logger.Warn().Err(err).Int64("session_id", id).Msg("failed to restore draft")
		case found:
			resumed := s.Wizard.Restore(step)
			if zone := s.Draft.Draft().Zone(); zone != "" {
				s.SetTimeZone(zone)
			}
			m.logger.Info().Int64("session_id", id).Str("step", string(resumed)).Msg("draft restored")
		}
	})
	return s
}

func (m *SessionManager) build(id int64) *Session {
	draft := NewDraftStore(id, m.repo, m.events, m.logger)
	selection := NewSlotSelection(draft, m.newPicker())
	return &Session{
		ID:        id,
		Draft:     draft,
		Selection: selection,
		Query:     NewAvailabilityQuery(m.api, draft, selection, m.logger),
		Wizard:    NewWizard(draft, m.submitter, m.events, m.logger),
		timeZone:  m.defaultZone,
	}
}

// Drop forgets the in-memory session; a persisted snapshot is kept.
func (m *SessionManager) Drop(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
