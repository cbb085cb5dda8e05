package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

func TestRedisService(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		RedisURL:  "localhost:6379",
		RedisPass: "",
		RedisDB:   0,
	}

	redisService, err := services.NewRedisService(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer redisService.Close()

	store := services.NewRedisDocumentStore(redisService, "test_streaks")
	defer redisService.DeleteDocument(ctx, "test_streaks")

	var missing models.StreakDocument
	assert.ErrorIs(t, store.Load(ctx, &missing), services.ErrNotFound)

	doc := models.NewStreakDocument()
	doc.Streaks["0xabc"] = &models.UserStreak{Address: "0xabc", CurrentStreak: 3}
	require.NoError(t, store.Save(ctx, doc))

	loaded := models.NewStreakDocument()
	require.NoError(t, store.Load(ctx, loaded))
	assert.Equal(t, int64(3), loaded.Streaks["0xabc"].CurrentStreak)

	snapshot := &models.LeaderboardSnapshot{
		Entries:   []models.LeaderboardEntry{{Address: "0xabc", Points: 160, Rank: 1}},
		LastBlock: 42,
	}
	require.NoError(t, redisService.CacheSnapshot(ctx, snapshot))
	cached, err := redisService.GetCachedSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cached.LastBlock)

	allowed, err := redisService.CheckRateLimit(ctx, "127.0.0.1", "test", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = redisService.CheckRateLimit(ctx, "127.0.0.1", "test", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	redisService.ClearRateLimit(ctx, "127.0.0.1", "test")
}
