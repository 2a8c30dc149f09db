package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"kudos-backend/services"

	"github.com/gin-gonic/gin"
)

// pageParams reads page and limit. A page past services.MaxPage is answered
// with 400 and ok is false.
func pageParams(c *gin.Context) (page, limit int, ok bool) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if page > services.MaxPage {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("page must be at most %d", services.MaxPage)})
		return 0, 0, false
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit, true
}
