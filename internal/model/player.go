package model

import "time"

// PlayerID is the locally assigned identifier of a tracked player
type PlayerID int64

// TrackedPlayer is a player whose online status is polled
type TrackedPlayer struct {
	ID          PlayerID
	UpstreamID  string // BattleMetrics player id, unique across tracked players
	CurrentName string
	ServerID    string
	IsActive    bool // inactive players are kept for history but not polled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NameHistoryEntry records a name a player has been seen under
type NameHistoryEntry struct {
	ID        int64
	PlayerID  PlayerID
	Name      string
	ChangedAt time.Time
}

// PlayerWithSnapshot pairs a tracked player with its most recent snapshot
type PlayerWithSnapshot struct {
	Player         *TrackedPlayer
	LatestSnapshot *PlayerSnapshot // nil if the player has never been polled
}
