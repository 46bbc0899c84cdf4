package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/middleware"
)

// Logging creates request logging middleware for the API
func Logging(logger *slog.Logger, recorder metrics.Recorder) func(http.Handler) http.Handler {
	return middleware.Logging(logger, recorder)
}
