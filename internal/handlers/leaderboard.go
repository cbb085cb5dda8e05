package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
	scanner     *services.ClaimScanner
}

func NewLeaderboardHandler(leaderboard *services.LeaderboardService, scanner *services.ClaimScanner) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard, scanner: scanner}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	if h.leaderboard == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard not configured"})
		return
	}

	var focus string
	if raw := c.Query("address"); raw != "" {
		address, err := models.NormalizeAddress(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Valid address required"})
			return
		}
		focus = address
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	view, err := h.leaderboard.Leaderboard(c.Request.Context(), focus, limit)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard not ready"})
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load leaderboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":        view.Entries,
		"focus":          view.Focus,
		"totalAddresses": view.TotalAddresses,
		"lastBlock":      view.LastBlock,
		"generatedAt":    view.GeneratedAt,
	})
}

type claimResponse struct {
	ID        int64           `json:"id"`
	GameType  models.GameType `json:"gameType"`
	Amount    string          `json:"amount"`
	AmountEth string          `json:"amountEth"`
}

func (h *LeaderboardHandler) GetClaims(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Claim scanner not configured"})
		return
	}

	address := c.Query("address")
	if !models.IsAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid address required"})
		return
	}

	claims, err := h.scanner.Scan(c.Request.Context(), address)
	if err != nil {
		log.WithField("address", address).WithError(err).Error("Claim scan failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to scan claims"})
		return
	}

	out := make([]claimResponse, 0, len(claims))
	for _, claim := range claims {
		out = append(out, claimResponse{
			ID:        claim.ID,
			GameType:  claim.GameType,
			Amount:    claim.Amount.String(),
			AmountEth: models.FormatEther(claim.Amount),
		})
	}
	c.JSON(http.StatusOK, gin.H{"claims": out})
}
