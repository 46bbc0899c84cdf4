package storage

import (
	"context"
	"time"

	"github.com/mcoot/playerwatch/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Tracked player operations
	ListActivePlayers(ctx context.Context) ([]*model.PlayerWithSnapshot, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.TrackedPlayer, error)
	GetPlayerByUpstreamID(ctx context.Context, upstreamID string) (*model.TrackedPlayer, error)
	// AddPlayer assigns player.ID; fails with model.ErrDuplicatePlayer if the upstream id is known
	AddPlayer(ctx context.Context, player *model.TrackedPlayer) error
	// RenamePlayer records a name history entry and updates the current name
	// atomically. It is a no-op reporting false if the name is unchanged.
	RenamePlayer(ctx context.Context, id model.PlayerID, newName string, changedAt time.Time) (bool, error)
	SetPlayerActive(ctx context.Context, id model.PlayerID, active bool, at time.Time) error
	ListNameHistory(ctx context.Context, id model.PlayerID) ([]*model.NameHistoryEntry, error)

	// Snapshot operations
	AppendSnapshot(ctx context.Context, snapshot *model.PlayerSnapshot) error
	// QuerySnapshots returns snapshots newest first; a zero from or to leaves that side unbounded
	QuerySnapshots(ctx context.Context, id model.PlayerID, from, to time.Time) ([]*model.PlayerSnapshot, error)

	// Polling cycle operations
	AppendCycleLog(ctx context.Context, log *model.PollingCycleLog) error
	// QueryCycleLogs returns logs at or after since, newest first
	QueryCycleLogs(ctx context.Context, since time.Time) ([]*model.PollingCycleLog, error)

	Close() error
}
