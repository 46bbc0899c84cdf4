package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage"
	"github.com/mcoot/playerwatch/internal/storage/storagetest"
)

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func() storage.Storage { return New() },
	})
}

func TestReturnedPlayersAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &model.TrackedPlayer{UpstreamID: "bm-1", CurrentName: "Alice", IsActive: true}
	require.NoError(t, s.AddPlayer(ctx, p))

	got, err := s.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	got.CurrentName = "Mallory"
	p.CurrentName = "Eve"

	again, err := s.GetPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.CurrentName)
}

func TestLatestSnapshotPrefersLaterInsertOnTie(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	p := &model.TrackedPlayer{UpstreamID: "bm-1", CurrentName: "Alice", IsActive: true}
	require.NoError(t, s.AddPlayer(ctx, p))
	require.NoError(t, s.AppendSnapshot(ctx, &model.PlayerSnapshot{PlayerID: p.ID, Timestamp: at, IsOnline: false}))
	require.NoError(t, s.AppendSnapshot(ctx, &model.PlayerSnapshot{PlayerID: p.ID, Timestamp: at, IsOnline: true}))

	players, err := s.ListActivePlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.True(t, players[0].LatestSnapshot.IsOnline)
}
