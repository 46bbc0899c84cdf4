package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerwatch/internal/api"
	"github.com/mcoot/playerwatch/internal/api/response"
	"github.com/mcoot/playerwatch/internal/dependencies/mocks"
	"github.com/mcoot/playerwatch/internal/factory"
	"github.com/mcoot/playerwatch/internal/testutil"
	"github.com/mcoot/playerwatch/internal/upstream"
)

type CLISuite struct {
	suite.Suite
	app    *factory.TestApp
	server *httptest.Server
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:         testutil.NopLogger(),
		Clock:          s.app.Clock,
		PollingService: s.app.PollingService,
		QueryService:   s.app.QueryService,
		Scheduler:      s.app.Scheduler,
		Cache:          s.app.Cache,
		Metrics:        s.app.Metrics,
	}))
}

func (s *CLISuite) TearDownTest() {
	s.server.Close()
}

// execute runs the CLI against the test server and returns stdout
func (s *CLISuite) execute(args ...string) (string, error) {
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", s.server.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (s *CLISuite) TestAddPlayerJoinsArgs() {
	s.app.MockUpstream.SetSearchResults("Bob the Builder", upstream.Player{ID: "bm-2", Name: "Bob the Builder"})

	out, err := s.execute("-o", "json", "add-player", "Bob", "the", "Builder")
	s.Require().NoError(err)

	var player response.Player
	s.Require().NoError(json.Unmarshal([]byte(out), &player))
	s.Equal("bm-2", player.UpstreamID)
	s.Equal(factory.TestServerID, player.ServerID)
}

func (s *CLISuite) TestAddPlayerAPIError() {
	_, err := s.execute("add-player", "Ghost")
	s.Require().Error(err)

	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(400, apiErr.Status)
	s.Equal("PLAYER_NOT_FOUND_UPSTREAM", apiErr.Code)
}

func (s *CLISuite) TestPlayersText() {
	s.app.MockUpstream.SetSearchResults("Alice", upstream.Player{ID: "bm-1", Name: "Alice"})
	_, err := s.execute("add-player", "Alice")
	s.Require().NoError(err)

	out, err := s.execute("players")
	s.Require().NoError(err)
	s.Contains(out, "Alice")
	s.Contains(out, "unknown")
	s.Contains(out, "never")

	snap := mocks.NewServerSnapshot()
	snap.Players["bm-1"] = upstream.Player{ID: "bm-1", Name: "Alice"}
	snap.Sessions["bm-1"] = []upstream.Session{{ID: "s1", PlayerID: "bm-1", Start: s.app.MockClock.Now().Add(-2 * time.Hour)}}
	s.app.MockUpstream.SetSnapshot(snap)

	out, err = s.execute("poll")
	s.Require().NoError(err)
	s.Contains(out, "Players: 1 polled, 1 ok, 0 failed")

	out, err = s.execute("players")
	s.Require().NoError(err)
	s.Contains(out, "online for 2 hours")
}

func (s *CLISuite) TestRemovePlayer() {
	s.app.MockUpstream.SetSearchResults("Alice", upstream.Player{ID: "bm-1", Name: "Alice"})
	_, err := s.execute("add-player", "Alice")
	s.Require().NoError(err)

	out, err := s.execute("remove-player", "1")
	s.Require().NoError(err)
	s.Equal("Stopped tracking player 1\n", out)

	out, err = s.execute("players")
	s.Require().NoError(err)
	s.Equal("No players tracked\n", out)
}

func (s *CLISuite) TestRemovePlayerInvalidID() {
	_, err := s.execute("remove-player", "0")
	s.ErrorContains(err, `invalid player id "0"`)
}

func (s *CLISuite) TestPollDefersToRunningDaemonCycle() {
	entered, release := s.app.MockUpstream.HoldFetches()
	defer release()

	scheduled := make(chan error, 1)
	go func() {
		_, err := s.app.Scheduler.RunOnce(context.Background())
		scheduled <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		s.FailNow("scheduled cycle never reached the upstream fetch")
	}

	_, err := s.execute("poll")
	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(500, apiErr.Status)
	s.Equal("CYCLE_ALREADY_RUNNING", apiErr.Code)

	release()
	select {
	case err := <-scheduled:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("scheduled cycle did not finish after release")
	}
	s.Equal(1, s.app.MockUpstream.FetchCalls())
}

func (s *CLISuite) TestStatsJSON() {
	_, err := s.execute("poll")
	s.Require().NoError(err)

	out, err := s.execute("-o", "json", "stats", "--hours", "2")
	s.Require().NoError(err)

	var stats StatsResult
	s.Require().NoError(json.Unmarshal([]byte(out), &stats))
	s.Equal(2, stats.Summary.Hours)
	s.Equal(1, stats.Summary.TotalPolls)
	s.Len(stats.Cycles, 1)
}

func (s *CLISuite) TestStatusText() {
	out, err := s.execute("status")
	s.Require().NoError(err)
	s.Contains(out, "State: idle")
	s.Contains(out, "Interval: 5 minutes")
	s.Contains(out, "Cycles: 0 run, 0 skipped")
}

func (s *CLISuite) TestNamesAndActivity() {
	s.app.MockUpstream.SetSearchResults("Bob", upstream.Player{ID: "bm-1", Name: "Bob"})
	_, err := s.execute("add-player", "Bob")
	s.Require().NoError(err)

	snap := mocks.NewServerSnapshot()
	snap.Players["bm-1"] = upstream.Player{ID: "bm-1", Name: "Bobby"}
	snap.Sessions["bm-1"] = []upstream.Session{{ID: "s1", PlayerID: "bm-1", Start: s.app.MockClock.Now().Add(-time.Minute)}}
	s.app.MockUpstream.SetSnapshot(snap)
	_, err = s.execute("poll")
	s.Require().NoError(err)

	out, err := s.execute("names", "1")
	s.Require().NoError(err)
	s.Contains(out, "Bobby")

	out, err = s.execute("activity", "1")
	s.Require().NoError(err)
	s.Contains(out, "Player: 1 (last 24 hours)")
	s.Contains(out, "Sessions: 1")
}

func (s *CLISuite) TestHealth() {
	out, err := s.execute("health")
	s.Require().NoError(err)
	s.Equal("Status: ok\n", out)
}

func (s *CLISuite) TestPrintErrorJSON() {
	var out, errOut bytes.Buffer
	NewOutput("json", &out, &errOut).PrintError(&APIError{Code: "PLAYER_NOT_FOUND", Message: "player not found"})

	s.Empty(out.String())
	s.JSONEq(`{"error":{"message":"player not found (PLAYER_NOT_FOUND)"}}`, errOut.String())
}

func (s *CLISuite) TestFormatDuration() {
	s.Equal("1 hour 30 minutes", formatDuration(90*time.Minute))
	s.Equal("2 days 3 hours", formatDuration(51*time.Hour+20*time.Minute))
	s.Equal("250ms", formatDuration(250*time.Millisecond))
}
