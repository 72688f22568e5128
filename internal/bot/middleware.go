package bot

import (
	"context"
	"time"

	"bookflow/internal/metrics"

	"github.com/rs/zerolog"
)

func (b *Bot) withRecovery(ctx context.Context, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncPanic()
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allow applies the per-user message rate limit. A limiter failure lets the
// update through.
func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil {
		return true
	}
	window := time.Duration(b.cfg.Bot.RateLimitWindow) * time.Second
	allowed, err := b.limiter.CheckRateLimit(ctx, userID, b.cfg.Bot.RateLimitMessages, window)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		return true
	}
	if !allowed {
		zerolog.Ctx(ctx).Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
	}
	return allowed
}
