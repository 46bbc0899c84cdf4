package handler

import (
	"net/http"

	"github.com/mcoot/playerwatch/internal/api/response"
	"github.com/mcoot/playerwatch/internal/dependencies/clock"
)

// HealthHandler reports liveness
type HealthHandler struct {
	clock clock.Clock
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(clk clock.Clock) *HealthHandler {
	return &HealthHandler{clock: clk}
}

// Get handles GET /health
func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok", Timestamp: h.clock.Now()})
}
