package handlers

import (
	"net/http"
	"strconv"

	"kudos-backend/services"

	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	Service *services.LeaderboardService
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit := services.DefaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	period, err := services.ParsePeriod(c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.Service.Rank(c.Request.Context(), limit, period)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
