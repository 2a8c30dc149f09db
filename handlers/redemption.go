package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"kudos-backend/middleware"
	"kudos-backend/models"
	"kudos-backend/services"
	"kudos-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RedemptionHandler struct {
	Service *services.RedemptionService
}

type requestRedemptionRequest struct {
	RewardID string `json:"reward_id" binding:"required,uuid"`
}

type rejectRedemptionRequest struct {
	Reason string `json:"reason"`
}

type fulfillRedemptionRequest struct {
	Notes string `json:"notes"`
}

func (h *RedemptionHandler) RequestRedemption(c *gin.Context) {
	var req requestRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	rewardID, _ := uuid.Parse(req.RewardID)

	red, err := h.Service.RequestRedemption(c.Request.Context(), middleware.CurrentUserID(c), rewardID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, red)
}

// ListRedemptions pages through redemptions. Non-admin callers only ever see
// their own.
func (h *RedemptionHandler) ListRedemptions(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	filter := services.RedemptionFilter{
		UserID: c.Query("user_id"),
		Status: models.RedemptionStatus(strings.ToUpper(c.Query("status"))),
	}
	if !middleware.IsAdmin(c) {
		filter.UserID = middleware.CurrentUserID(c)
	}

	redemptions, total, err := h.Service.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redemptions": redemptions,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

func (h *RedemptionHandler) GetTransitions(c *gin.Context) {
	c.JSON(http.StatusOK, models.AllowedTransitions)
}

func (h *RedemptionHandler) GetRedemption(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}

	red, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	// Another user's redemption is reported as missing.
	if !middleware.IsAdmin(c) && red.UserID != middleware.CurrentUserID(c) {
		respondError(c, services.ErrRedemptionNotFound)
		return
	}

	c.JSON(http.StatusOK, red)
}

func (h *RedemptionHandler) ApproveRedemption(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}

	red, err := h.Service.Approve(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, red)
}

func (h *RedemptionHandler) RejectRedemption(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}

	var req rejectRedemptionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	red, err := h.Service.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, red)
}

func (h *RedemptionHandler) FulfillRedemption(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}

	var req fulfillRedemptionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	red, err := h.Service.Fulfill(c.Request.Context(), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, red)
}

func redemptionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid redemption id"})
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return false
	}
	return true
}
