package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/domain"
	"bookflow/internal/models"

	"github.com/redis/go-redis/v9"
)

var _ domain.DraftRepository = (*RedisDraftRepository)(nil)

type RedisDraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisDraftRepository(client *redis.Client, ttl time.Duration) *RedisDraftRepository {
	return &RedisDraftRepository{
		client: client,
		ttl:    ttl,
	}
}

func draftKey(sessionID int64) string {
	return fmt.Sprintf("bookflow:draft:%d", sessionID)
}

func rateLimitKey(sessionID int64) string {
	return fmt.Sprintf("bookflow:rate_limit:%d", sessionID)
}

// GetDraft returns nil without error when no snapshot is stored.
func (r *RedisDraftRepository) GetDraft(ctx context.Context, sessionID int64) (*models.DraftSnapshot, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, draftKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft from redis: %w", err)
	}

	var snapshot models.DraftSnapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &snapshot, nil
}

func (r *RedisDraftRepository) SaveDraft(ctx context.Context, snapshot *models.DraftSnapshot) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := r.client.Set(ctx, draftKey(snapshot.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft in redis: %w", err)
	}
	return nil
}

func (r *RedisDraftRepository) ClearDraft(ctx context.Context, sessionID int64) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, draftKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts an action in a fixed window and reports whether it is allowed.
func (r *RedisDraftRepository) CheckRateLimit(ctx context.Context, sessionID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}
	key := rateLimitKey(sessionID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
