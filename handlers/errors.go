package handlers

import (
	"net/http"

	"kudos-backend/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps a service error onto an HTTP status. Insufficient balance is a
// client error and an unavailable reward is reported as missing.
func statusFor(err error) int {
	switch services.CodeOf(err) {
	case services.ErrInsufficientBalance.Code:
		return http.StatusBadRequest
	case services.ErrRewardUnavailable.Code:
		return http.StatusNotFound
	}
	switch services.KindOf(err) {
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Storage details stay in the logs.
		message = "Internal server error"
	}
	c.JSON(status, gin.H{"error": message, "code": services.CodeOf(err)})
}
