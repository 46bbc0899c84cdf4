package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerwatch/internal/dependencies/mocks"
	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage/memory"
	"github.com/mcoot/playerwatch/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
	base    time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.base = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(s.base)
	s.service = New(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) addPlayer(upstreamID, name string) *model.TrackedPlayer {
	p := &model.TrackedPlayer{UpstreamID: upstreamID, CurrentName: name, ServerID: "srv", IsActive: true, CreatedAt: s.base, UpdatedAt: s.base}
	s.Require().NoError(s.storage.AddPlayer(s.ctx, p))
	return p
}

func (s *ServiceSuite) addSnapshot(id model.PlayerID, ago time.Duration, online bool, start *time.Time, duration int64) {
	snap := &model.PlayerSnapshot{
		PlayerID:     id,
		Timestamp:    s.base.Add(-ago),
		IsOnline:     online,
		SessionStart: start,
	}
	if start != nil {
		snap.DurationSec = &duration
	}
	s.Require().NoError(s.storage.AppendSnapshot(s.ctx, snap))
}

func (s *ServiceSuite) addCycle(ago time.Duration, errors int, durationMs int64) {
	s.Require().NoError(s.storage.AppendCycleLog(s.ctx, &model.PollingCycleLog{
		RunID:        "run",
		Timestamp:    s.base.Add(-ago),
		PlayersCount: 3,
		SuccessCount: 3 - errors,
		ErrorCount:   errors,
		DurationMs:   durationMs,
		Errors:       []string{},
	}))
}

func (s *ServiceSuite) TestNormalizeHours() {
	s.Equal(24, NormalizeHours(0))
	s.Equal(24, NormalizeHours(-5))
	s.Equal(6, NormalizeHours(6))
}

func (s *ServiceSuite) TestPlayerHistoryWindow() {
	p := s.addPlayer("bm-1", "Alice")
	s.addSnapshot(p.ID, time.Hour, true, nil, 0)
	s.addSnapshot(p.ID, 5*time.Hour, false, nil, 0)
	s.addSnapshot(p.ID, 30*time.Hour, false, nil, 0)

	snaps, err := s.service.PlayerHistory(s.ctx, p.ID, 0)
	s.Require().NoError(err)
	s.Len(snaps, 2)
	s.True(snaps[0].IsOnline)

	snaps, err = s.service.PlayerHistory(s.ctx, p.ID, 2)
	s.Require().NoError(err)
	s.Len(snaps, 1)
}

func (s *ServiceSuite) TestPlayerHistoryUnknownPlayer() {
	_, err := s.service.PlayerHistory(s.ctx, 99, 24)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestNameHistory() {
	p := s.addPlayer("bm-1", "Bob")
	_, err := s.storage.RenamePlayer(s.ctx, p.ID, "Bobby", s.base)
	s.Require().NoError(err)

	names, err := s.service.NameHistory(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(names, 1)
	s.Equal("Bobby", names[0].Name)

	_, err = s.service.NameHistory(s.ctx, 99)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestPlayerActivity() {
	p := s.addPlayer("bm-1", "Alice")
	first := s.base.Add(-3 * time.Hour)
	second := s.base.Add(-time.Hour)

	s.addSnapshot(p.ID, 170*time.Minute, true, &first, 600)
	s.addSnapshot(p.ID, 165*time.Minute, true, &first, 900)
	s.addSnapshot(p.ID, 2*time.Hour, false, &first, 3600)
	s.addSnapshot(p.ID, 30*time.Minute, true, &second, 1800)

	activity, err := s.service.PlayerActivity(s.ctx, p.ID, 0)
	s.Require().NoError(err)
	s.Equal(24, activity.Hours)
	s.Equal(4, activity.SnapshotCount)
	s.Equal(3, activity.OnlineCount)
	s.InDelta(0.75, activity.OnlineRatio, 1e-9)
	s.Equal(2, activity.Sessions)
	s.Require().NotNil(activity.LongestSession)
	s.Equal(int64(3600), *activity.LongestSession)
	s.Require().NotNil(activity.LastSeenOnline)
	s.Equal(s.base.Add(-30*time.Minute), *activity.LastSeenOnline)
}

func (s *ServiceSuite) TestPlayerActivityWithoutSnapshots() {
	p := s.addPlayer("bm-1", "Alice")

	activity, err := s.service.PlayerActivity(s.ctx, p.ID, 6)
	s.Require().NoError(err)
	s.Equal(0, activity.SnapshotCount)
	s.Zero(activity.OnlineRatio)
	s.Nil(activity.LongestSession)
	s.Nil(activity.LastSeenOnline)
}

func (s *ServiceSuite) TestPollingStatsWindow() {
	s.addCycle(time.Hour, 0, 100)
	s.addCycle(2*time.Hour, 1, 200)
	s.addCycle(48*time.Hour, 0, 300)

	logs, err := s.service.PollingStats(s.ctx, -1)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(s.base.Add(-time.Hour), logs[0].Timestamp)
}

func (s *ServiceSuite) TestPollingSummary() {
	s.addCycle(time.Hour, 0, 100)
	s.addCycle(2*time.Hour, 2, 300)
	s.addCycle(3*time.Hour, 0, 200)
	s.addCycle(4*time.Hour, 0, 400)

	summary, err := s.service.PollingSummary(s.ctx, 24)
	s.Require().NoError(err)
	s.Equal(4, summary.TotalPolls)
	s.Equal(3, summary.SuccessfulPolls)
	s.InDelta(75.0, summary.SuccessRate, 1e-9)
	s.InDelta(250.0, summary.AvgDurationMs, 1e-9)
	s.Equal(2, summary.TotalErrors)
}

func (s *ServiceSuite) TestPollingSummaryEmpty() {
	summary, err := s.service.PollingSummary(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(24, summary.Hours)
	s.Equal(0, summary.TotalPolls)
	s.Zero(summary.SuccessRate)
	s.Zero(summary.AvgDurationMs)
}

func (s *ServiceSuite) TestListPlayers() {
	p := s.addPlayer("bm-1", "Alice")
	s.addSnapshot(p.ID, time.Minute, true, nil, 0)

	players, err := s.service.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.Require().NotNil(players[0].LatestSnapshot)
	s.True(players[0].LatestSnapshot.IsOnline)
}
