package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/middleware"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

// Deps are the services behind the HTTP surface. Leaderboard, Scanner,
// Redis and Bots may be left nil when not configured.
type Deps struct {
	Streaks     *services.StreakService
	Referrals   *services.ReferralService
	Leaderboard *services.LeaderboardService
	Scanner     *services.ClaimScanner
	Redis       *services.RedisService
	Hub         *WebSocketHub
	Bots        map[string]services.BotController
}

func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(), middleware.CORS(), middleware.Gzip("/metrics", "/ws"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(services.MetricsHandler()))

	if deps.Hub != nil {
		wsHandler := NewWebSocketHandler(deps.Hub, deps.Leaderboard)
		router.GET("/ws", wsHandler.HandleWebSocket)
	}

	referralHandler := NewReferralHandler(deps.Referrals)
	streakHandler := NewStreakHandler(deps.Streaks)
	leaderboardHandler := NewLeaderboardHandler(deps.Leaderboard, deps.Scanner)
	botHandler := NewBotHandler(ctx, deps.Bots)

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(deps.Redis, services.DefaultRateLimitWrites, services.RateLimitWindow))
	{
		api.GET("/referrals", referralHandler.GetReferrals)
		api.POST("/referrals", referralHandler.RecordReferral)

		api.GET("/streaks", streakHandler.GetStreak)
		api.POST("/streaks", streakHandler.UpdateStreak)

		api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		api.GET("/claims", leaderboardHandler.GetClaims)

		bots := api.Group("/bots")
		bots.Use(middleware.AdminAuthMiddleware(cfg.AdminJWTSecret))
		{
			bots.GET("", botHandler.ListBots)
			bots.POST("/:name", botHandler.ControlBot)
		}
	}

	return router
}
