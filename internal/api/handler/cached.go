package handler

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/mcoot/playerwatch/internal/api/response"
	"github.com/mcoot/playerwatch/internal/cache"
	"github.com/mcoot/playerwatch/internal/metrics"
)

// cachedResponder serves encoded GET responses from the response cache
type cachedResponder struct {
	cache   cache.Cache
	metrics metrics.Recorder
}

func newCachedResponder(c cache.Cache, recorder metrics.Recorder) cachedResponder {
	if c == nil {
		c = cache.Noop()
	}
	if recorder == nil {
		recorder = metrics.Noop()
	}
	return cachedResponder{cache: c, metrics: recorder}
}

// serve writes the cached body for key, or builds, caches and writes it
func (c cachedResponder) serve(w http.ResponseWriter, key string, build func() (any, error)) {
	if body, ok := c.cache.Get(key); ok {
		c.metrics.IncCacheHits()
		w.Header().Set("X-Cache", "HIT")
		response.RawJSON(w, http.StatusOK, body)
		return
	}
	c.metrics.IncCacheMisses()

	data, err := build()
	if err != nil {
		WriteError(w, err)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		WriteError(w, NewInternalError())
		return
	}

	if err := c.cache.Set(key, body); err != nil {
		c.metrics.IncCacheRejects()
	}
	w.Header().Set("X-Cache", "MISS")
	response.RawJSON(w, http.StatusOK, body)
}
