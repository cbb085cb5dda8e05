package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

// BotHandler toggles the in-process resolution bots. Bots run on the
// server's root context, not the request's.
type BotHandler struct {
	ctx  context.Context
	bots map[string]services.BotController
}

func NewBotHandler(ctx context.Context, bots map[string]services.BotController) *BotHandler {
	return &BotHandler{ctx: ctx, bots: bots}
}

type botRequest struct {
	Action string `json:"action" binding:"required,oneof=start stop status"`
}

func (h *BotHandler) ControlBot(c *gin.Context) {
	bot, ok := h.bots[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown bot"})
		return
	}

	var req botRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	success := true
	switch req.Action {
	case "start":
		success = bot.Start(h.ctx)
	case "stop":
		success = bot.Stop()
	}

	c.JSON(http.StatusOK, gin.H{"success": success, "status": bot.Status()})
}

func (h *BotHandler) ListBots(c *gin.Context) {
	statuses := make([]services.BotStatus, 0, len(h.bots))
	for _, bot := range h.bots {
		statuses = append(statuses, bot.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	c.JSON(http.StatusOK, gin.H{"bots": statuses})
}
