package factory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerwatch/internal/dependencies/mocks"
	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage/memory"
	redisstorage "github.com/mcoot/playerwatch/internal/storage/redis"
	"github.com/mcoot/playerwatch/internal/storage/sqlite"
	"github.com/mcoot/playerwatch/internal/upstream"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

// Test: onboard a player, watch a session start and end, then stop tracking
func (s *IntegrationSuite) TestTrackingLifecycle() {
	base := s.app.MockClock.Now()
	s.app.MockUpstream.SetSearchResults("Alice", upstream.Player{ID: "bm-1", Name: "Alice"})

	// Step 1: Track by name
	alice, err := s.app.PollingService.AddPlayerByName(s.ctx, "Alice")
	s.Require().NoError(err)

	// Step 2: Alice joins the server
	online := mocks.NewServerSnapshot()
	online.Players["bm-1"] = upstream.Player{ID: "bm-1", Name: "Alice"}
	online.Sessions["bm-1"] = []upstream.Session{{ID: "s1", PlayerID: "bm-1", Start: base.Add(-10 * time.Minute)}}
	s.app.MockUpstream.SetSnapshot(online)

	cycle, err := s.app.Scheduler.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, cycle.SuccessCount)

	players, err := s.app.QueryService.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.True(players[0].LatestSnapshot.IsOnline)

	// Step 3: Alice leaves
	s.app.MockClock.Advance(5 * time.Minute)
	stop := base.Add(2 * time.Minute)
	offline := mocks.NewServerSnapshot()
	offline.Sessions["bm-1"] = []upstream.Session{{ID: "s1", PlayerID: "bm-1", Start: base.Add(-10 * time.Minute), Stop: &stop}}
	s.app.MockUpstream.SetSnapshot(offline)

	_, err = s.app.Scheduler.RunOnce(s.ctx)
	s.Require().NoError(err)

	activity, err := s.app.QueryService.PlayerActivity(s.ctx, alice.ID, 24)
	s.Require().NoError(err)
	s.Equal(2, activity.SnapshotCount)
	s.Equal(1, activity.OnlineCount)
	s.Equal(1, activity.Sessions)
	s.Equal(int64(12*60), *activity.LongestSession)

	summary, err := s.app.QueryService.PollingSummary(s.ctx, 24)
	s.Require().NoError(err)
	s.Equal(2, summary.TotalPolls)
	s.Equal(2, summary.SuccessfulPolls)

	// Step 4: Stop tracking
	s.Require().NoError(s.app.PollingService.RemovePlayer(s.ctx, alice.ID))
	cycle, err = s.app.Scheduler.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, cycle.PlayersCount)
}

func (s *IntegrationSuite) TestCycleClearsResponseCache() {
	s.Require().NoError(s.app.Cache.Set("players", []byte("[]")))

	_, err := s.app.Scheduler.RunOnce(s.ctx)
	s.Require().NoError(err)

	_, ok := s.app.Cache.Get("players")
	s.False(ok)
}

func (s *IntegrationSuite) TestCycleMetricsRecorded() {
	_, err := s.app.Scheduler.RunOnce(s.ctx)
	s.Require().NoError(err)

	expected := `
# HELP playerwatch_cycles_total Total number of completed polling cycles
# TYPE playerwatch_cycles_total counter
playerwatch_cycles_total 1
`
	s.NoError(testutil.GatherAndCompare(s.app.Prometheus.Registry(), strings.NewReader(expected), "playerwatch_cycles_total"))
}

func (s *IntegrationSuite) TestRunAfterStopIsRejected() {
	s.Require().NoError(s.app.Scheduler.Stop(s.ctx))

	_, err := s.app.Scheduler.RunOnce(s.ctx)
	s.ErrorIs(err, model.ErrSchedulerStopped)
}

func TestStorageType(t *testing.T) {
	cases := map[string]string{
		"":                            StorageTypeMemory,
		"memory":                      StorageTypeMemory,
		"redis://localhost:6379/0":    StorageTypeRedis,
		"rediss://cache.internal:637": StorageTypeRedis,
		"file:./data/playerwatch.db":  StorageTypeSQLite,
		"sqlite:///tmp/pw.db":         StorageTypeSQLite,
		"./data/pw.db":                StorageTypeSQLite,
	}
	for url, want := range cases {
		assert.Equal(t, want, StorageType(url), url)
	}
}

func TestOpenStorageMemory(t *testing.T) {
	store, err := OpenStorage("memory", nil)
	require.NoError(t, err)
	_, ok := store.(*memory.Storage)
	assert.True(t, ok)
}

func TestOpenStorageSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "pw.db")

	store, err := OpenStorage("file:"+path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, ok := store.(*sqlite.Storage)
	assert.True(t, ok)
	assert.FileExists(t, path)
}

func TestOpenStorageRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := OpenStorage("redis://"+mr.Addr(), nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, ok := store.(*redisstorage.Storage)
	assert.True(t, ok)
}

func TestOpenStorageRedisUnreachable(t *testing.T) {
	cfg := redisstorage.DefaultConfig()
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := OpenStorage("redis://127.0.0.1:1", &cfg)
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	dsn, path := sqliteDSN("file:./data/pw.db?cache=shared")
	assert.Equal(t, "file:./data/pw.db?cache=shared", dsn)
	assert.Equal(t, "./data/pw.db", path)

	dsn, path = sqliteDSN("sqlite:///var/lib/pw.db")
	assert.Equal(t, "/var/lib/pw.db", dsn)
	assert.Equal(t, "/var/lib/pw.db", path)
}
