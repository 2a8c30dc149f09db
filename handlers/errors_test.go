package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kudos-backend/services"

	"github.com/gin-gonic/gin"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidAmount, http.StatusBadRequest},
		{services.ErrSelfRecognition, http.StatusBadRequest},
		{services.ErrInsufficientBalance, http.StatusBadRequest},
		{services.ErrRewardUnavailable, http.StatusNotFound},
		{services.ErrRewardNotFound, http.StatusNotFound},
		{services.ErrRedemptionNotFound, http.StatusNotFound},
		{services.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", services.ErrInsufficientBalance), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp["error"] != "Internal server error" {
		t.Errorf("expected generic message, got %v", resp["error"])
	}
	if resp["code"] != "INTERNAL" {
		t.Errorf("expected INTERNAL code, got %v", resp["code"])
	}
}
