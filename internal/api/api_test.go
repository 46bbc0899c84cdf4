package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/playerwatch/internal/api"
	"github.com/mcoot/playerwatch/internal/api/apierr"
	"github.com/mcoot/playerwatch/internal/api/response"
	"github.com/mcoot/playerwatch/internal/dependencies/mocks"
	"github.com/mcoot/playerwatch/internal/factory"
	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/upstream"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app := factory.NewTestApp()

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Clock:          app.Clock,
		PollingService: app.PollingService,
		QueryService:   app.QueryService,
		Scheduler:      app.Scheduler,
		Cache:          app.Cache,
		Metrics:        app.Metrics,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) addPlayer(t *testing.T, upstreamID, name string) response.Player {
	t.Helper()
	ts.app.MockUpstream.SetSearchResults(name, upstream.Player{ID: upstreamID, Name: name})

	rr := ts.request(http.MethodPost, "/players", map[string]string{"name": name})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var player response.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &player))
	return player
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var health response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, ts.app.MockClock.Now(), health.Timestamp)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestAddPlayer(t *testing.T) {
	ts := newTestServer(t)

	player := ts.addPlayer(t, "bm-1", "Alice")
	assert.NotZero(t, player.ID)
	assert.Equal(t, "bm-1", player.UpstreamID)
	assert.Equal(t, "Alice", player.CurrentName)
	assert.Equal(t, factory.TestServerID, player.ServerID)
	assert.True(t, player.IsActive)
}

func TestAddPlayerErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.addPlayer(t, "bm-1", "Alice")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"empty name", map[string]string{"name": "  "}, http.StatusBadRequest, apierr.CodeInvalidPlayerName},
		{"not found upstream", map[string]string{"name": "Nobody"}, http.StatusBadRequest, apierr.CodePlayerNotFoundUpstream},
		{"already tracked", map[string]string{"name": "Alice"}, http.StatusBadRequest, apierr.CodePlayerAlreadyTracked},
		{"invalid body", "not an object", http.StatusBadRequest, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/players", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

func TestAddPlayerUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockUpstream.SetSearchError(&upstream.Error{Op: upstream.OpSearchPlayers, StatusCode: http.StatusServiceUnavailable, Message: "maintenance"})

	rr := ts.request(http.MethodPost, "/players", map[string]string{"name": "Alice"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, apierr.CodeUpstreamError, decodeError(t, rr).Code)
}

func TestListPlayersIsCachedUntilChange(t *testing.T) {
	ts := newTestServer(t)
	ts.addPlayer(t, "bm-1", "Alice")

	rr := ts.request(http.MethodGet, "/players", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))

	var players []response.PlayerStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &players))
	require.Len(t, players, 1)
	assert.Nil(t, players[0].LatestSnapshot)

	rr = ts.request(http.MethodGet, "/players", nil)
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))

	// A polling cycle invalidates the cache
	rr = ts.request(http.MethodPost, "/polling/trigger", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/players", nil)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &players))
	require.NotNil(t, players[0].LatestSnapshot)
	assert.False(t, players[0].LatestSnapshot.IsOnline)
}

func TestRemovePlayer(t *testing.T) {
	ts := newTestServer(t)
	player := ts.addPlayer(t, "bm-1", "Alice")

	rr := ts.request(http.MethodDelete, fmt.Sprintf("/players/%d", player.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/players", nil)
	var players []response.PlayerStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &players))
	assert.Empty(t, players)
}

func TestRemovePlayerErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodDelete, "/players/999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decodeError(t, rr).Code)

	rr = ts.request(http.MethodDelete, "/players/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlayerSnapshotsAndActivity(t *testing.T) {
	ts := newTestServer(t)
	player := ts.addPlayer(t, "bm-1", "Alice")

	snap := mocks.NewServerSnapshot()
	snap.Players["bm-1"] = upstream.Player{ID: "bm-1", Name: "Alice"}
	snap.Sessions["bm-1"] = []upstream.Session{{ID: "s1", PlayerID: "bm-1", Start: ts.app.MockClock.Now().Add(-time.Hour)}}
	ts.app.MockUpstream.SetSnapshot(snap)

	rr := ts.request(http.MethodPost, "/polling/trigger", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, fmt.Sprintf("/players/%d/snapshots?hours=abc", player.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snaps []response.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].IsOnline)
	require.NotNil(t, snaps[0].DurationSec)
	assert.Equal(t, int64(3600), *snaps[0].DurationSec)

	rr = ts.request(http.MethodGet, fmt.Sprintf("/players/%d/activity", player.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var activity response.Activity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &activity))
	assert.Equal(t, 24, activity.Hours)
	assert.Equal(t, 1, activity.OnlineCount)
	assert.InDelta(t, 1.0, activity.OnlineRatio, 1e-9)

	rr = ts.request(http.MethodGet, "/players/999/snapshots", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNameHistory(t *testing.T) {
	ts := newTestServer(t)
	player := ts.addPlayer(t, "bm-2", "Bob")

	snap := mocks.NewServerSnapshot()
	snap.Players["bm-2"] = upstream.Player{ID: "bm-2", Name: "Bobby"}
	ts.app.MockUpstream.SetSnapshot(snap)

	rr := ts.request(http.MethodPost, "/polling/trigger", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, fmt.Sprintf("/players/%d/names", player.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var names []response.NameChange
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &names))
	require.Len(t, names, 1)
	assert.Equal(t, "Bobby", names[0].Name)
}

func TestPollingStatsAndSummary(t *testing.T) {
	ts := newTestServer(t)
	ts.addPlayer(t, "bm-1", "Alice")

	rr := ts.request(http.MethodPost, "/polling/trigger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cycle response.PollingCycle
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cycle))
	assert.Equal(t, 1, cycle.PlayersCount)
	assert.Equal(t, 1, cycle.SuccessCount)
	assert.NotEmpty(t, cycle.RunID)
	assert.NotNil(t, cycle.Errors)

	rr = ts.request(http.MethodGet, "/polling/stats?hours=0", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var logs []response.PollingCycle
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &logs))
	assert.Len(t, logs, 1)

	rr = ts.request(http.MethodGet, "/polling/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var summary response.PollingSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalPolls)
	assert.InDelta(t, 100.0, summary.SuccessRate, 1e-9)
}

func TestPollingTriggerFailure(t *testing.T) {
	ts := newTestServer(t)
	boom := errors.New("connection refused")
	ts.app.MockUpstream.FailFetches(boom, boom, boom)

	rr := ts.request(http.MethodPost, "/polling/trigger", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodePollingFailed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "connection refused")
}

func TestPollingTriggerWhileCycleRunning(t *testing.T) {
	ts := newTestServer(t)
	entered, release := ts.app.MockUpstream.HoldFetches()
	defer release()

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- ts.request(http.MethodPost, "/polling/trigger", nil)
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never reached the upstream fetch")
	}

	rr := ts.request(http.MethodPost, "/polling/trigger", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, apierr.CodeCycleAlreadyRunning, decodeError(t, rr).Code)

	release()
	select {
	case done := <-first:
		assert.Equal(t, http.StatusOK, done.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("held cycle did not finish after release")
	}
	assert.Equal(t, 1, ts.app.MockUpstream.FetchCalls())
}

func TestPollingTriggerAfterStop(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.app.Scheduler.Stop(t.Context()))

	rr := ts.request(http.MethodPost, "/polling/trigger", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, apierr.CodeSchedulerStopped, decodeError(t, rr).Code)
}

func TestPollingStatus(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/polling/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var status response.SchedulerStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "idle", status.State)
	assert.False(t, status.IsRunning)
	assert.False(t, status.IsScheduled)
	assert.InDelta(t, 5.0, status.IntervalMinutes, 1e-9)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.request(http.MethodGet, "/health", nil)

	rr := ts.request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `playerwatch_http_requests_total{route="/health",status="2xx"} 1`), body)
}

func TestErrorStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, apierr.Status(model.ErrPlayerNotFound))
	assert.Equal(t, http.StatusInternalServerError, apierr.Status(model.ErrCycleAlreadyRunning))
	assert.Equal(t, http.StatusServiceUnavailable, apierr.Status(model.ErrSchedulerStopped))
	assert.Equal(t, http.StatusBadGateway, apierr.Status(fmt.Errorf("wrapped: %w", &upstream.Error{Op: "x", Message: "y"})))
	assert.Equal(t, http.StatusInternalServerError, apierr.Status(errors.New("other")))
}
