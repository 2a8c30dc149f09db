package handlers

import (
	"net/http"

	"kudos-backend/middleware"
	"kudos-backend/models"
	"kudos-backend/services"
	"kudos-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RecognitionHandler struct {
	Service *services.RecognitionService
}

type sendRecognitionRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Message    string `json:"message" binding:"required"`
	Badge      string `json:"badge"`
	Points     int64  `json:"points" binding:"gte=0"`
}

func (h *RecognitionHandler) SendRecognition(c *gin.Context) {
	var req sendRecognitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	rec, err := h.Service.SendRecognition(c.Request.Context(), services.RecognitionRequest{
		SenderID:   middleware.CurrentUserID(c),
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		Badge:      models.Badge(req.Badge),
		Points:     req.Points,
	})
	if err != nil {
		if rec != nil {
			// Stored but not credited; an admin can retry the credit.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":       "Recognition saved but points could not be credited",
				"code":        services.CodeOf(err),
				"recognition": rec,
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (h *RecognitionHandler) ListRecognitions(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	filter := services.RecognitionFilter{
		SenderID:   c.Query("sender_id"),
		ReceiverID: c.Query("receiver_id"),
	}

	recognitions, total, err := h.Service.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recognitions": recognitions,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// RetryCredit re-applies the credit of a stored recognition.
func (h *RecognitionHandler) RetryCredit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recognition id"})
		return
	}

	rec, balance, err := h.Service.RetryCredit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recognition": rec,
		"user_id":     rec.ReceiverID,
		"points":      balance,
	})
}
