package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mcoot/playerwatch/internal/api/response"
	"github.com/mcoot/playerwatch/internal/cache"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/services/query"
	"github.com/mcoot/playerwatch/internal/services/scheduler"
)

// PollingHandler handles polling statistics and control endpoints
type PollingHandler struct {
	queryService *query.Service
	scheduler    *scheduler.Scheduler
	cached       cachedResponder
}

// NewPollingHandler creates a new polling handler
func NewPollingHandler(queryService *query.Service, sched *scheduler.Scheduler, c cache.Cache, recorder metrics.Recorder) *PollingHandler {
	return &PollingHandler{
		queryService: queryService,
		scheduler:    sched,
		cached:       newCachedResponder(c, recorder),
	}
}

// Stats handles GET /polling/stats
func (h *PollingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	window := hours(r)
	h.cached.serve(w, fmt.Sprintf("polling:stats:%d", window), func() (any, error) {
		logs, err := h.queryService.PollingStats(r.Context(), window)
		if err != nil {
			return nil, err
		}
		return response.PollingCyclesFromModel(logs), nil
	})
}

// Summary handles GET /polling/summary
func (h *PollingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	window := hours(r)
	h.cached.serve(w, fmt.Sprintf("polling:summary:%d", window), func() (any, error) {
		summary, err := h.queryService.PollingSummary(r.Context(), window)
		if err != nil {
			return nil, err
		}
		return response.PollingSummaryFromQuery(summary), nil
	})
}

// Status handles GET /polling/status
func (h *PollingHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.SchedulerStatusFromStatus(h.scheduler.Status()))
}

// Trigger handles POST /polling/trigger
func (h *PollingHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, model.ErrCycleAlreadyRunning) || errors.Is(err, model.ErrSchedulerStopped) {
			WriteError(w, err)
			return
		}
		WriteError(w, NewPollingFailedError(err.Error()))
		return
	}

	response.JSON(w, http.StatusOK, response.PollingCycleFromModel(cycle))
}
