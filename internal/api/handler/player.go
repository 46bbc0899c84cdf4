package handler

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/mcoot/playerwatch/internal/api/request"
	"github.com/mcoot/playerwatch/internal/api/response"
	"github.com/mcoot/playerwatch/internal/cache"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/services/polling"
	"github.com/mcoot/playerwatch/internal/services/query"
)

const cacheKeyPlayers = "players"

// PlayerHandler handles tracked player endpoints
type PlayerHandler struct {
	pollingService *polling.Service
	queryService   *query.Service
	cached         cachedResponder
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(pollingService *polling.Service, queryService *query.Service, c cache.Cache, recorder metrics.Recorder) *PlayerHandler {
	return &PlayerHandler{
		pollingService: pollingService,
		queryService:   queryService,
		cached:         newCachedResponder(c, recorder),
	}
}

// List handles GET /players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	h.cached.serve(w, cacheKeyPlayers, func() (any, error) {
		players, err := h.queryService.ListPlayers(r.Context())
		if err != nil {
			return nil, err
		}
		return response.PlayerStatusesFromModel(players), nil
	})
}

// Add handles POST /players
func (h *PlayerHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req request.AddPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	player, err := h.pollingService.AddPlayerByName(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

// Remove handles DELETE /players/{id}
func (h *PlayerHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.pollingService.RemovePlayer(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Snapshots handles GET /players/{id}/snapshots
func (h *PlayerHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	snaps, err := h.queryService.PlayerHistory(r.Context(), id, hours(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SnapshotsFromModel(snaps))
}

// Names handles GET /players/{id}/names
func (h *PlayerHandler) Names(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	names, err := h.queryService.NameHistory(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.NameHistoryFromModel(names))
}

// Activity handles GET /players/{id}/activity
func (h *PlayerHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	activity, err := h.queryService.PlayerActivity(r.Context(), id, hours(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ActivityFromQuery(activity))
}
