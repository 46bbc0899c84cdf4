package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound    = errors.New("player not found")
	ErrDuplicatePlayer   = errors.New("player is already tracked")
	ErrInvalidPlayerName = errors.New("player name must not be empty")

	// Upstream lookup errors
	ErrNoUpstreamMatch = errors.New("no player found upstream with that name")
	ErrMalformedEntry  = errors.New("malformed upstream entry")

	// Polling errors
	ErrCycleAlreadyRunning = errors.New("a polling cycle is already running")
	ErrSchedulerStopped    = errors.New("scheduler has been stopped")
)
