package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	// Redis is optional; leaving RedisURL empty disables caching and rate limiting.
	RedisURL  string
	RedisPass string
	RedisDB   int

	// Document store: "file", "redis" or "sqlite"
	StoreBackend string
	DataDir      string

	RPCURL              string
	ChainID             int64
	RoundsContract      string
	EliminationContract string
	DeployBlock         uint64
	BotPrivateKey       string

	BotInterval        time.Duration
	LobbyCountdown     time.Duration
	DecisionWindow     time.Duration
	DecisionGrace      time.Duration
	ConfirmTimeout     time.Duration
	AutoStartBot       bool
	MinPlayersFallback int64

	LeaderboardInterval time.Duration
	LeaderboardTopN     int
	LogChunkSize        uint64

	ScanBlockWindow  uint64
	ScanRecentRounds int64
	ScanRecentGames  int64

	AdminJWTSecret string
	MetricsAddr    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisURL:  os.Getenv("REDIS_URL"),
		RedisPass: os.Getenv("REDIS_PASSWORD"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		DataDir:      getEnv("DATA_DIR", "data"),

		RPCURL:              os.Getenv("RPC_URL"),
		ChainID:             int64(getEnvInt("CHAIN_ID", 8453)),
		RoundsContract:      os.Getenv("ROUNDS_CONTRACT"),
		EliminationContract: os.Getenv("ELIMINATION_CONTRACT"),
		DeployBlock:         getEnvUint("DEPLOY_BLOCK", 0),
		BotPrivateKey:       strings.TrimPrefix(os.Getenv("BOT_PRIVATE_KEY"), "0x"),

		BotInterval:        getEnvDuration("BOT_INTERVAL", 10*time.Second),
		LobbyCountdown:     getEnvDuration("LOBBY_COUNTDOWN", 30*time.Second),
		DecisionWindow:     getEnvDuration("DECISION_WINDOW", 20*time.Second),
		DecisionGrace:      getEnvDuration("DECISION_GRACE", 5*time.Second),
		ConfirmTimeout:     getEnvDuration("CONFIRM_TIMEOUT", 2*time.Minute),
		AutoStartBot:       os.Getenv("AUTO_START_BOT") == "true",
		MinPlayersFallback: int64(getEnvInt("MIN_PLAYERS", 2)),

		LeaderboardInterval: getEnvDuration("LEADERBOARD_INTERVAL", 45*time.Second),
		LeaderboardTopN:     getEnvInt("LEADERBOARD_TOP_N", 100),
		LogChunkSize:        getEnvUint("LOG_CHUNK_SIZE", 9000),

		ScanBlockWindow:  getEnvUint("SCAN_BLOCK_WINDOW", 50000),
		ScanRecentRounds: int64(getEnvInt("SCAN_RECENT_ROUNDS", 20)),
		ScanRecentGames:  int64(getEnvInt("SCAN_RECENT_GAMES", 20)),

		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":2112"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "file", "sqlite":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("STORE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}
	if c.LeaderboardTopN <= 0 {
		return fmt.Errorf("LEADERBOARD_TOP_N must be positive")
	}
	if c.BotInterval <= 0 || c.LeaderboardInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.LogChunkSize == 0 {
		return fmt.Errorf("LOG_CHUNK_SIZE must be positive")
	}
	return nil
}

// RequireChain validates what the bots and chain readers need on top of Validate.
func (c *Config) RequireChain(needKey bool) error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.RoundsContract == "" && c.EliminationContract == "" {
		return fmt.Errorf("ROUNDS_CONTRACT or ELIMINATION_CONTRACT is required")
	}
	if needKey && c.BotPrivateKey == "" {
		return fmt.Errorf("BOT_PRIVATE_KEY is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvUint(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
		// bare integers are seconds
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
