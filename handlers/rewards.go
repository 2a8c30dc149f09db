package handlers

import (
	"net/http"

	"kudos-backend/services"

	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	Catalog *services.GormCatalog
}

// GetRewards lists the active catalog, cheapest first.
func (h *RewardHandler) GetRewards(c *gin.Context) {
	items, err := h.Catalog.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
