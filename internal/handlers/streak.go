package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

type StreakHandler struct {
	streaks *services.StreakService
}

func NewStreakHandler(streaks *services.StreakService) *StreakHandler {
	return &StreakHandler{streaks: streaks}
}

type streakRequest struct {
	Action  string `json:"action" binding:"required,oneof=record protect"`
	Address string `json:"address" binding:"required"`
	RoundID int64  `json:"roundId"`
	IsWin   *bool  `json:"isWin"`
}

func (h *StreakHandler) GetStreak(c *gin.Context) {
	address, err := models.NormalizeAddress(c.Query("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid address required"})
		return
	}

	c.JSON(http.StatusOK, h.streaks.Get(c.Request.Context(), address))
}

func (h *StreakHandler) UpdateStreak(c *gin.Context) {
	var req streakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid address required"})
		return
	}
	if req.RoundID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid roundId required"})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "record":
		if req.IsWin == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "isWin required"})
			return
		}
		streak := h.streaks.RecordResult(ctx, address, req.RoundID, *req.IsWin)
		c.JSON(http.StatusOK, gin.H{"success": true, "streak": streak})

	case "protect":
		if !h.streaks.ProtectStreak(ctx, address, req.RoundID) {
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "streak": h.streaks.Get(ctx, address)})
	}
}
