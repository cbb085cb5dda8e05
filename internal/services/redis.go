package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// Document store backend: one key holds the whole JSON document.

func (s *RedisService) LoadDocument(ctx context.Context, name string, v any) error {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyDocument, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal document %s: %w", name, err)
	}
	return nil
}

func (s *RedisService) SaveDocument(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", name, err)
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyDocument, name), data, 0).Err()
}

func (s *RedisService) CacheSnapshot(ctx context.Context, snapshot *models.LeaderboardSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, KeyLeaderboardSnapshot, data, TTLLeaderboardSnapshot).Err()
}

func (s *RedisService) GetCachedSnapshot(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	data, err := s.client.Get(ctx, KeyLeaderboardSnapshot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot models.LeaderboardSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, clientKey, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, clientKey, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		return count <= int64(limit), nil
	}

	if count > int64(limit) {
		// a lost EXPIRE would otherwise block the client for good
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("failed to read rate limit window: %w", err)
		}
		if ttl < 0 {
			if err := s.client.Expire(ctx, key, window).Err(); err != nil {
				return false, fmt.Errorf("failed to set rate limit window: %w", err)
			}
		}
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, clientKey, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, clientKey, action)).Err()
}

func (s *RedisService) DeleteDocument(ctx context.Context, name string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyDocument, name)).Err()
}
