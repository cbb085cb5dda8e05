package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/services"
)

type ReferralHandler struct {
	referrals *services.ReferralService
}

func NewReferralHandler(referrals *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

type recordReferralRequest struct {
	Referrer string `json:"referrer" binding:"required"`
	Referee  string `json:"referee" binding:"required"`
}

func (h *ReferralHandler) GetReferrals(c *gin.Context) {
	if c.Query("all") == "true" {
		c.JSON(http.StatusOK, gin.H{"points": h.referrals.Points(c.Request.Context())})
		return
	}

	address := c.Query("address")
	if !models.IsAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid address required"})
		return
	}

	c.JSON(http.StatusOK, h.referrals.Info(c.Request.Context(), address))
}

func (h *ReferralHandler) RecordReferral(c *gin.Context) {
	var req recordReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ok := h.referrals.Record(c.Request.Context(), req.Referrer, req.Referee)
	c.JSON(http.StatusOK, gin.H{"success": ok})
}
