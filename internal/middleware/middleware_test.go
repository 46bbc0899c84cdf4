package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/testutil"
)

func newTestRouter(t *testing.T, h http.HandlerFunc) (*mux.Router, *testutil.LogBuffer) {
	t.Helper()
	logger, logs := testutil.CaptureLogger()

	r := mux.NewRouter()
	r.Use(Logging(logger, metrics.Noop()))
	r.Use(Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	r.HandleFunc("/players/{id}", h)
	return r, logs
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var seen string
	r, logs := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/players/7", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), "route=/players/{id}")
	assert.Contains(t, logs.String(), "status=204")
}

func TestLoggingKeepsIncomingRequestID(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/players/1", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryLogsPanicWithRequestID(t *testing.T) {
	r, logs := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/players/1", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "request_id=req-42")
	assert.Contains(t, logs.String(), "status=500")
}

func TestUnmatchedRouteLabel(t *testing.T) {
	r, logs := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	// mux skips middleware for unmatched routes
	assert.NotContains(t, logs.String(), "http request")
}
