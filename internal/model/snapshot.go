package model

import (
	"fmt"
	"time"
)

// PlayerSnapshot is the observed state of one player in one polling cycle.
//
// When IsOnline is true SessionEnd is nil and DurationSec, if set, is the
// elapsed time of the active session. When the player is offline and a
// completed session was found, SessionStart, SessionEnd and DurationSec are
// all set and DurationSec equals SessionEnd minus SessionStart.
type PlayerSnapshot struct {
	ID           int64
	PlayerID     PlayerID
	Timestamp    time.Time
	IsOnline     bool
	SessionStart *time.Time
	SessionEnd   *time.Time
	DurationSec  *int64
	FirstTime    *bool // first session ever on this server
	Private      *bool // upstream profile is private
}

// PollingCycleLog summarizes one completed polling cycle
type PollingCycleLog struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	PlayersCount int
	SuccessCount int
	ErrorCount   int
	DurationMs   int64
	Errors       []string
}

// PlayerError is a failure isolated to a single player during a cycle
type PlayerError struct {
	PlayerID PlayerID
	Name     string
	Err      error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("failed to poll player %s (%d): %v", e.Name, e.PlayerID, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}
