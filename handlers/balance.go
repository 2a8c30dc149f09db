package handlers

import (
	"net/http"

	"kudos-backend/middleware"
	"kudos-backend/services"
	"kudos-backend/utils"

	"github.com/gin-gonic/gin"
)

type BalanceHandler struct {
	Ledger *services.LedgerService
}

type adjustBalanceRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	ReferenceID string `json:"reference_id"`
	Description string `json:"description"`
}

func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID := c.Param("userId")

	points, err := h.Ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "points": points})
}

// GetHistory lists ledger entries of a user, newest first. Only the owner
// and admins may read it.
func (h *BalanceHandler) GetHistory(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.IsAdmin(c) && userID != middleware.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	entries, total, err := h.Ledger.History(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

func (h *BalanceHandler) AdjustBalance(c *gin.Context) {
	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	userID := c.Param("userId")
	points, err := h.Ledger.Adjust(c.Request.Context(), userID, req.Amount, req.ReferenceID, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "points": points})
}

func (h *BalanceHandler) AuditBalance(c *gin.Context) {
	report, err := h.Ledger.Reconcile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
