package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("BOT_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, 10*time.Second, cfg.BotInterval)
	assert.Equal(t, 30*time.Second, cfg.LobbyCountdown)
	assert.Equal(t, 45*time.Second, cfg.LeaderboardInterval)
	assert.Equal(t, 100, cfg.LeaderboardTopN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_INTERVAL", "3")
	t.Setenv("DECISION_WINDOW", "1m")
	t.Setenv("BOT_PRIVATE_KEY", "0xabc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.BotInterval)
	assert.Equal(t, time.Minute, cfg.DecisionWindow)
	assert.Equal(t, "abc", cfg.BotPrivateKey)
}

func TestValidateRejectsRedisBackendWithoutURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequireChain(t *testing.T) {
	cfg := &Config{RPCURL: "http://localhost:8545", RoundsContract: "0x1"}
	assert.NoError(t, cfg.RequireChain(false))
	assert.Error(t, cfg.RequireChain(true))

	cfg.RPCURL = ""
	assert.Error(t, cfg.RequireChain(false))
}
