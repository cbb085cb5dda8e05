package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/handlers"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	config.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(ctx, cfg)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisService.Close()
	}

	var db *sql.DB
	if cfg.StoreBackend == "sqlite" {
		db, err = services.OpenSQLite(filepath.Join(cfg.DataDir, "baseflip.db"))
		if err != nil {
			log.WithError(err).Fatal("Failed to open SQLite store")
		}
		defer db.Close()
	}

	streakStore, err := services.NewDocumentStore(cfg, "streaks", redisService, db)
	if err != nil {
		log.WithError(err).Fatal("Failed to open streak store")
	}
	referralStore, err := services.NewDocumentStore(cfg, "referrals", redisService, db)
	if err != nil {
		log.WithError(err).Fatal("Failed to open referral store")
	}

	hub := handlers.NewWebSocketHub()
	go hub.Run(ctx)

	deps := handlers.Deps{
		Streaks:   services.NewStreakService(streakStore),
		Referrals: services.NewReferralService(referralStore),
		Redis:     redisService,
		Hub:       hub,
		Bots:      map[string]services.BotController{},
	}

	if cfg.RPCURL != "" {
		chain, err := services.DialChain(ctx, cfg, cfg.BotPrivateKey != "")
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to chain")
		}
		defer chain.Close()
		wireChain(ctx, cfg, chain, redisService, hub, &deps)
	} else {
		log.Warn("RPC_URL not set, leaderboard, claims and bots are disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	for name, bot := range deps.Bots {
		if bot.Stop() {
			log.WithField("bot", name).Info("Bot stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

// wireChain builds everything that reads from or writes to the contracts.
// Readers stay nil interfaces when their contract is not configured.
func wireChain(ctx context.Context, cfg *config.Config, chain *services.ChainClient,
	redisService *services.RedisService, hub *handlers.WebSocketHub, deps *handlers.Deps) {

	events := chain.Events(cfg.RoundsContract, cfg.EliminationContract)

	var cache services.SnapshotCache
	if redisService != nil {
		cache = redisService
	}
	deps.Leaderboard = services.NewLeaderboardService(cfg, events, cache, hub)
	deps.Leaderboard.Start(ctx)

	var (
		roundReader services.RoundStakeReader
		gameReader  services.GamePlayerReader
	)
	if cfg.RoundsContract != "" {
		rounds := chain.Rounds(cfg.RoundsContract)
		roundReader = rounds
		deps.Bots[services.RoundsBotName] = services.NewRoundResolver(cfg, rounds)
	}
	if cfg.EliminationContract != "" {
		elimination := chain.Elimination(cfg.EliminationContract)
		gameReader = elimination
		deps.Bots[services.EliminationBotName] = services.NewEliminationResolver(cfg, elimination)
	}
	deps.Scanner = services.NewClaimScanner(cfg, roundReader, gameReader, events)

	if cfg.AutoStartBot {
		if cfg.BotPrivateKey == "" {
			log.Warn("AUTO_START_BOT set without BOT_PRIVATE_KEY, bots not started")
			return
		}
		for name, bot := range deps.Bots {
			if bot.Start(ctx) {
				log.WithField("bot", name).Info("Bot auto-started")
			}
		}
	}
}
