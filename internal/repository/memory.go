package repository

import (
	"context"
	"sync"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/models"
)

var _ domain.DraftRepository = (*MemoryDraftRepository)(nil)

// MemoryDraftRepository keeps snapshots in process memory. A zero ttl never expires.
type MemoryDraftRepository struct {
	mu         sync.Mutex
	drafts     map[int64]memoryDraft
	rateLimits map[int64]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type memoryDraft struct {
	snapshot  models.DraftSnapshot
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{
		drafts:     make(map[int64]memoryDraft),
		rateLimits: make(map[int64]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryDraftRepository) GetDraft(_ context.Context, sessionID int64) (*models.DraftSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		delete(r.drafts, sessionID)
		return nil, nil
	}

	snapshot := entry.snapshot
	snapshot.Draft = snapshot.Draft.Clone()
	return &snapshot, nil
}

func (r *MemoryDraftRepository) SaveDraft(_ context.Context, snapshot *models.DraftSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *snapshot
	stored.Draft = snapshot.Draft.Clone()

	var expiresAt time.Time
	if r.ttl > 0 {
		expiresAt = r.now().Add(r.ttl)
	}
	r.drafts[snapshot.SessionID] = memoryDraft{snapshot: stored, expiresAt: expiresAt}
	return nil
}

func (r *MemoryDraftRepository) ClearDraft(_ context.Context, sessionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, sessionID)
	return nil
}

func (r *MemoryDraftRepository) CheckRateLimit(_ context.Context, sessionID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[sessionID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[sessionID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}
