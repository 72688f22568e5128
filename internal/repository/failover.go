package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/models"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

var _ domain.DraftRepository = (*FailoverDraftRepository)(nil)

// FailoverDraftRepository serves from primary until it errors, then from the
// fallback, probing primary again once per recovery interval.
type FailoverDraftRepository struct {
	primary  domain.DraftRepository
	fallback domain.DraftRepository
	logger   *zerolog.Logger

	isDown           atomic.Bool
	mu               sync.Mutex
	lastCheck        time.Time
	recoveryInterval time.Duration
	now              func() time.Time
}

func NewFailoverDraftRepository(primary, fallback domain.DraftRepository, logger *zerolog.Logger) *FailoverDraftRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverDraftRepository{
		primary:          primary,
		fallback:         fallback,
		logger:           logger,
		recoveryInterval: defaultRecoveryInterval,
		now:              time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverDraftRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.now().Sub(r.lastCheck) > r.recoveryInterval {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverDraftRepository) markDown(op string, err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary draft repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

func (r *FailoverDraftRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary draft repository recovered")
	}
}

func (r *FailoverDraftRepository) GetDraft(ctx context.Context, sessionID int64) (*models.DraftSnapshot, error) {
	if r.usePrimary() {
		snapshot, err := r.primary.GetDraft(ctx, sessionID)
		if err == nil {
			r.markUp()
			return snapshot, nil
		}
		r.markDown("get", err)
	}
	return r.fallback.GetDraft(ctx, sessionID)
}

func (r *FailoverDraftRepository) SaveDraft(ctx context.Context, snapshot *models.DraftSnapshot) error {
	if r.usePrimary() {
		err := r.primary.SaveDraft(ctx, snapshot)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown("save", err)
	}
	return r.fallback.SaveDraft(ctx, snapshot)
}

func (r *FailoverDraftRepository) ClearDraft(ctx context.Context, sessionID int64) error {
	// The fallback may hold a copy written while primary was down.
	fallbackErr := r.fallback.ClearDraft(ctx, sessionID)
	if r.usePrimary() {
		err := r.primary.ClearDraft(ctx, sessionID)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown("clear", err)
	}
	return fallbackErr
}

func (r *FailoverDraftRepository) CheckRateLimit(ctx context.Context, sessionID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, sessionID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown("rate_limit", err)
	}
	return r.fallback.CheckRateLimit(ctx, sessionID, limit, window)
}
