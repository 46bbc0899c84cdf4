// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage"
)

// Suite runs the common storage tests against a backend.
// Backends embed or construct it with NewStorage set.
type Suite struct {
	suite.Suite

	// NewStorage returns a fresh, empty backend for each test
	NewStorage func() storage.Storage

	Store storage.Storage
	Ctx   context.Context
	Base  time.Time
}

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage()
	s.Ctx = context.Background()
	s.Base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

func (s *Suite) addPlayer(upstreamID, name string) *model.TrackedPlayer {
	p := &model.TrackedPlayer{
		UpstreamID:  upstreamID,
		CurrentName: name,
		ServerID:    "srv-1",
		IsActive:    true,
		CreatedAt:   s.Base,
		UpdatedAt:   s.Base,
	}
	s.Require().NoError(s.Store.AddPlayer(s.Ctx, p))
	return p
}

func (s *Suite) snapshot(id model.PlayerID, at time.Time, online bool) *model.PlayerSnapshot {
	snap := &model.PlayerSnapshot{PlayerID: id, Timestamp: at, IsOnline: online}
	s.Require().NoError(s.Store.AppendSnapshot(s.Ctx, snap))
	return snap
}

func (s *Suite) sameTime(expected, actual time.Time) {
	s.True(expected.Equal(actual), "expected %s, got %s", expected, actual)
}

// Player tests

func (s *Suite) TestAddAndGetPlayer() {
	p := s.addPlayer("bm-1", "Alice")
	s.NotZero(p.ID)

	got, err := s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("bm-1", got.UpstreamID)
	s.Equal("Alice", got.CurrentName)
	s.Equal("srv-1", got.ServerID)
	s.True(got.IsActive)
	s.sameTime(s.Base, got.CreatedAt)

	byUpstream, err := s.Store.GetPlayerByUpstreamID(s.Ctx, "bm-1")
	s.Require().NoError(err)
	s.Equal(p.ID, byUpstream.ID)
}

func (s *Suite) TestAddPlayerAssignsDistinctIDs() {
	a := s.addPlayer("bm-1", "Alice")
	b := s.addPlayer("bm-2", "Bob")
	s.NotEqual(a.ID, b.ID)
}

func (s *Suite) TestAddPlayerDuplicateUpstreamID() {
	s.addPlayer("bm-1", "Alice")

	err := s.Store.AddPlayer(s.Ctx, &model.TrackedPlayer{UpstreamID: "bm-1", CurrentName: "Other", IsActive: true})
	s.ErrorIs(err, model.ErrDuplicatePlayer)
}

func (s *Suite) TestAddPlayerConcurrentDuplicates() {
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Store.AddPlayer(s.Ctx, &model.TrackedPlayer{UpstreamID: "bm-race", CurrentName: "Racer", IsActive: true})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			s.ErrorIs(err, model.ErrDuplicatePlayer)
		}
	}
	s.Equal(1, succeeded)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, 999)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.Store.GetPlayerByUpstreamID(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListActivePlayersWithLatestSnapshot() {
	alice := s.addPlayer("bm-1", "Alice")
	bob := s.addPlayer("bm-2", "Bob")
	carol := s.addPlayer("bm-3", "Carol")
	s.Require().NoError(s.Store.SetPlayerActive(s.Ctx, carol.ID, false, s.Base))

	s.snapshot(alice.ID, s.Base, false)
	s.snapshot(alice.ID, s.Base.Add(5*time.Minute), true)

	players, err := s.Store.ListActivePlayers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 2)

	s.Equal(alice.ID, players[0].Player.ID)
	s.Require().NotNil(players[0].LatestSnapshot)
	s.True(players[0].LatestSnapshot.IsOnline)
	s.sameTime(s.Base.Add(5*time.Minute), players[0].LatestSnapshot.Timestamp)

	s.Equal(bob.ID, players[1].Player.ID)
	s.Nil(players[1].LatestSnapshot)
}

func (s *Suite) TestListActivePlayersEmpty() {
	players, err := s.Store.ListActivePlayers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *Suite) TestRenamePlayer() {
	p := s.addPlayer("bm-1", "Bob")
	at := s.Base.Add(time.Hour)

	renamed, err := s.Store.RenamePlayer(s.Ctx, p.ID, "Bobby", at)
	s.Require().NoError(err)
	s.True(renamed)

	got, err := s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Bobby", got.CurrentName)
	s.sameTime(at, got.UpdatedAt)

	history, err := s.Store.ListNameHistory(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("Bobby", history[0].Name)
	s.Equal(p.ID, history[0].PlayerID)
	s.sameTime(at, history[0].ChangedAt)
}

func (s *Suite) TestRenamePlayerUnchangedIsNoop() {
	p := s.addPlayer("bm-1", "Bob")

	renamed, err := s.Store.RenamePlayer(s.Ctx, p.ID, "Bob", s.Base.Add(time.Hour))
	s.Require().NoError(err)
	s.False(renamed)

	history, err := s.Store.ListNameHistory(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *Suite) TestNameHistoryNewestFirst() {
	p := s.addPlayer("bm-1", "A")
	for i, name := range []string{"B", "C", "D"} {
		_, err := s.Store.RenamePlayer(s.Ctx, p.ID, name, s.Base.Add(time.Duration(i+1)*time.Hour))
		s.Require().NoError(err)
	}

	history, err := s.Store.ListNameHistory(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal("D", history[0].Name)
	s.Equal("B", history[2].Name)
}

func (s *Suite) TestRenameUnknownPlayer() {
	_, err := s.Store.RenamePlayer(s.Ctx, 999, "X", s.Base)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestSetPlayerActive() {
	p := s.addPlayer("bm-1", "Alice")

	s.Require().NoError(s.Store.SetPlayerActive(s.Ctx, p.ID, false, s.Base.Add(time.Minute)))
	got, err := s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)

	s.Require().NoError(s.Store.SetPlayerActive(s.Ctx, p.ID, true, s.Base.Add(2*time.Minute)))
	got, err = s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.True(got.IsActive)

	s.ErrorIs(s.Store.SetPlayerActive(s.Ctx, 999, false, s.Base), model.ErrPlayerNotFound)
}

// Snapshot tests

func (s *Suite) TestSnapshotRoundTripsOptionalFields() {
	p := s.addPlayer("bm-1", "Alice")
	start := s.Base.Add(-2 * time.Hour)
	end := s.Base.Add(-time.Hour)
	duration := int64(3600)
	firstTime := true
	private := false

	snap := &model.PlayerSnapshot{
		PlayerID:     p.ID,
		Timestamp:    s.Base,
		IsOnline:     false,
		SessionStart: &start,
		SessionEnd:   &end,
		DurationSec:  &duration,
		FirstTime:    &firstTime,
		Private:      &private,
	}
	s.Require().NoError(s.Store.AppendSnapshot(s.Ctx, snap))
	s.NotZero(snap.ID)

	snaps, err := s.Store.QuerySnapshots(s.Ctx, p.ID, time.Time{}, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(snaps, 1)
	got := snaps[0]
	s.Equal(snap.ID, got.ID)
	s.False(got.IsOnline)
	s.Require().NotNil(got.SessionStart)
	s.sameTime(start, *got.SessionStart)
	s.Require().NotNil(got.SessionEnd)
	s.sameTime(end, *got.SessionEnd)
	s.Equal(&duration, got.DurationSec)
	s.Equal(&firstTime, got.FirstTime)
	s.Equal(&private, got.Private)
}

func (s *Suite) TestSnapshotAbsentFieldsStayNil() {
	p := s.addPlayer("bm-1", "Alice")
	s.snapshot(p.ID, s.Base, false)

	snaps, err := s.Store.QuerySnapshots(s.Ctx, p.ID, time.Time{}, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(snaps, 1)
	s.Nil(snaps[0].SessionStart)
	s.Nil(snaps[0].SessionEnd)
	s.Nil(snaps[0].DurationSec)
	s.Nil(snaps[0].FirstTime)
	s.Nil(snaps[0].Private)
}

func (s *Suite) TestQuerySnapshotsRangeNewestFirst() {
	p := s.addPlayer("bm-1", "Alice")
	other := s.addPlayer("bm-2", "Bob")
	for i := range 5 {
		s.snapshot(p.ID, s.Base.Add(time.Duration(i)*time.Hour), i%2 == 0)
	}
	s.snapshot(other.ID, s.Base.Add(2*time.Hour), true)

	snaps, err := s.Store.QuerySnapshots(s.Ctx, p.ID, s.Base.Add(time.Hour), s.Base.Add(3*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(snaps, 3)
	s.sameTime(s.Base.Add(3*time.Hour), snaps[0].Timestamp)
	s.sameTime(s.Base.Add(time.Hour), snaps[2].Timestamp)
	for _, snap := range snaps {
		s.Equal(p.ID, snap.PlayerID)
	}

	all, err := s.Store.QuerySnapshots(s.Ctx, p.ID, time.Time{}, time.Time{})
	s.Require().NoError(err)
	s.Len(all, 5)
}

func (s *Suite) TestAppendSnapshotUnknownPlayer() {
	err := s.Store.AppendSnapshot(s.Ctx, &model.PlayerSnapshot{PlayerID: 999, Timestamp: s.Base})
	s.Error(err)
}

// Polling cycle tests

func (s *Suite) TestCycleLogs() {
	for i := range 3 {
		log := &model.PollingCycleLog{
			RunID:        "run-" + string(rune('a'+i)),
			Timestamp:    s.Base.Add(time.Duration(i) * time.Hour),
			PlayersCount: 3,
			SuccessCount: 3 - i,
			ErrorCount:   i,
			DurationMs:   int64(100 * (i + 1)),
		}
		if i > 0 {
			log.Errors = []string{"failed to poll player X (1): boom"}
		}
		s.Require().NoError(s.Store.AppendCycleLog(s.Ctx, log))
		s.NotZero(log.ID)
	}

	logs, err := s.Store.QueryCycleLogs(s.Ctx, s.Base.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal("run-c", logs[0].RunID)
	s.Equal(2, logs[0].ErrorCount)
	s.Equal(int64(300), logs[0].DurationMs)
	s.Equal([]string{"failed to poll player X (1): boom"}, logs[0].Errors)
	s.Equal("run-b", logs[1].RunID)
	s.sameTime(s.Base.Add(time.Hour), logs[1].Timestamp)

	all, err := s.Store.QueryCycleLogs(s.Ctx, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Empty(all[2].Errors)
}
