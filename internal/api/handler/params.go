package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/services/query"
)

// playerID reads the {id} path variable
func playerID(r *http.Request) (model.PlayerID, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, NewInvalidRequestError("player id must be a positive integer")
	}
	return model.PlayerID(id), nil
}

// hours reads the ?hours query parameter; anything unusable falls back to the default window
func hours(r *http.Request) int {
	h, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil {
		return query.DefaultHours
	}
	return query.NormalizeHours(h)
}
