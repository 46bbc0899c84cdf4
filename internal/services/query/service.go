// Package query answers read-only questions about tracked players and
// polling history.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/playerwatch/internal/dependencies/clock"
	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage"
)

// DefaultHours is the look-back window used when none is given
const DefaultHours = 24

// NormalizeHours maps a missing or non-positive window to DefaultHours
func NormalizeHours(hours int) int {
	if hours <= 0 {
		return DefaultHours
	}
	return hours
}

// Activity aggregates a player's snapshots over a window
type Activity struct {
	PlayerID       model.PlayerID
	Hours          int
	SnapshotCount  int
	OnlineCount    int
	OnlineRatio    float64
	Sessions       int
	LongestSession *int64 // seconds
	LastSeenOnline *time.Time
}

// PollingSummary aggregates cycle logs over a window
type PollingSummary struct {
	Hours           int
	TotalPolls      int
	SuccessfulPolls int     // cycles in which every player succeeded
	SuccessRate     float64 // percentage of successful polls
	AvgDurationMs   float64
	TotalErrors     int
}

// Service provides read access over storage
type Service struct {
	store  storage.Storage
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new query service
func New(store storage.Storage, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  clk,
		logger: logger.With(slog.String("component", "query")),
	}
}

// ListPlayers returns every active player with its latest snapshot
func (s *Service) ListPlayers(ctx context.Context) ([]*model.PlayerWithSnapshot, error) {
	return s.store.ListActivePlayers(ctx)
}

// GetPlayer returns a tracked player by id
func (s *Service) GetPlayer(ctx context.Context, id model.PlayerID) (*model.TrackedPlayer, error) {
	return s.store.GetPlayer(ctx, id)
}

// PlayerHistory returns a player's snapshots from the last hours, newest first
func (s *Service) PlayerHistory(ctx context.Context, id model.PlayerID, hours int) ([]*model.PlayerSnapshot, error) {
	if _, err := s.store.GetPlayer(ctx, id); err != nil {
		return nil, err
	}
	return s.store.QuerySnapshots(ctx, id, s.since(hours), time.Time{})
}

// NameHistory returns a player's recorded renames, newest first
func (s *Service) NameHistory(ctx context.Context, id model.PlayerID) ([]*model.NameHistoryEntry, error) {
	if _, err := s.store.GetPlayer(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListNameHistory(ctx, id)
}

// PlayerActivity summarizes a player's snapshots from the last hours
func (s *Service) PlayerActivity(ctx context.Context, id model.PlayerID, hours int) (*Activity, error) {
	hours = NormalizeHours(hours)
	snaps, err := s.PlayerHistory(ctx, id, hours)
	if err != nil {
		return nil, err
	}

	activity := &Activity{
		PlayerID:      id,
		Hours:         hours,
		SnapshotCount: len(snaps),
	}

	sessions := make(map[int64]struct{})
	for _, snap := range snaps {
		if snap.IsOnline {
			activity.OnlineCount++
			if activity.LastSeenOnline == nil || snap.Timestamp.After(*activity.LastSeenOnline) {
				ts := snap.Timestamp
				activity.LastSeenOnline = &ts
			}
		}
		if snap.SessionStart != nil {
			sessions[snap.SessionStart.UnixMilli()] = struct{}{}
		}
		if snap.DurationSec != nil && (activity.LongestSession == nil || *snap.DurationSec > *activity.LongestSession) {
			d := *snap.DurationSec
			activity.LongestSession = &d
		}
	}

	activity.Sessions = len(sessions)
	if activity.SnapshotCount > 0 {
		activity.OnlineRatio = float64(activity.OnlineCount) / float64(activity.SnapshotCount)
	}
	return activity, nil
}

// PollingStats returns the cycle logs from the last hours, newest first
func (s *Service) PollingStats(ctx context.Context, hours int) ([]*model.PollingCycleLog, error) {
	return s.store.QueryCycleLogs(ctx, s.since(hours))
}

// PollingSummary aggregates the cycle logs from the last hours
func (s *Service) PollingSummary(ctx context.Context, hours int) (*PollingSummary, error) {
	hours = NormalizeHours(hours)
	logs, err := s.PollingStats(ctx, hours)
	if err != nil {
		return nil, err
	}

	summary := &PollingSummary{Hours: hours, TotalPolls: len(logs)}
	var totalDuration int64
	for _, l := range logs {
		if l.ErrorCount == 0 {
			summary.SuccessfulPolls++
		}
		summary.TotalErrors += l.ErrorCount
		totalDuration += l.DurationMs
	}

	if summary.TotalPolls > 0 {
		summary.SuccessRate = float64(summary.SuccessfulPolls) / float64(summary.TotalPolls) * 100
		summary.AvgDurationMs = float64(totalDuration) / float64(summary.TotalPolls)
	}
	return summary, nil
}

func (s *Service) since(hours int) time.Time {
	return s.clock.Now().Add(-time.Duration(NormalizeHours(hours)) * time.Hour)
}
