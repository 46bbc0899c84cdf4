package response

import (
	"time"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/services/query"
	"github.com/mcoot/playerwatch/internal/services/scheduler"
)

// Health is the response for the health check
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Player represents a tracked player in API responses
type Player struct {
	ID          int64     `json:"id"`
	UpstreamID  string    `json:"upstream_id"`
	CurrentName string    `json:"current_name"`
	ServerID    string    `json:"server_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlayerFromModel converts a model.TrackedPlayer to a response Player
func PlayerFromModel(p *model.TrackedPlayer) Player {
	return Player{
		ID:          int64(p.ID),
		UpstreamID:  p.UpstreamID,
		CurrentName: p.CurrentName,
		ServerID:    p.ServerID,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Snapshot represents one observation of a player
type Snapshot struct {
	ID           int64      `json:"id"`
	PlayerID     int64      `json:"player_id"`
	Timestamp    time.Time  `json:"timestamp"`
	IsOnline     bool       `json:"is_online"`
	SessionStart *time.Time `json:"session_start,omitempty"`
	SessionEnd   *time.Time `json:"session_end,omitempty"`
	DurationSec  *int64     `json:"duration_seconds,omitempty"`
	FirstTime    *bool      `json:"first_time,omitempty"`
	Private      *bool      `json:"private,omitempty"`
}

// SnapshotFromModel converts a model.PlayerSnapshot
func SnapshotFromModel(s *model.PlayerSnapshot) Snapshot {
	return Snapshot{
		ID:           s.ID,
		PlayerID:     int64(s.PlayerID),
		Timestamp:    s.Timestamp,
		IsOnline:     s.IsOnline,
		SessionStart: s.SessionStart,
		SessionEnd:   s.SessionEnd,
		DurationSec:  s.DurationSec,
		FirstTime:    s.FirstTime,
		Private:      s.Private,
	}
}

// SnapshotsFromModel converts a list of snapshots
func SnapshotsFromModel(snaps []*model.PlayerSnapshot) []Snapshot {
	result := make([]Snapshot, len(snaps))
	for i, s := range snaps {
		result[i] = SnapshotFromModel(s)
	}
	return result
}

// PlayerStatus is a tracked player with its latest snapshot
type PlayerStatus struct {
	Player         Player    `json:"player"`
	LatestSnapshot *Snapshot `json:"latest_snapshot"`
}

// PlayerStatusesFromModel converts the active player listing
func PlayerStatusesFromModel(players []*model.PlayerWithSnapshot) []PlayerStatus {
	result := make([]PlayerStatus, len(players))
	for i, p := range players {
		result[i] = PlayerStatus{Player: PlayerFromModel(p.Player)}
		if p.LatestSnapshot != nil {
			snap := SnapshotFromModel(p.LatestSnapshot)
			result[i].LatestSnapshot = &snap
		}
	}
	return result
}

// NameChange is one entry of a player's name history
type NameChange struct {
	Name      string    `json:"name"`
	ChangedAt time.Time `json:"changed_at"`
}

// NameHistoryFromModel converts name history entries
func NameHistoryFromModel(entries []*model.NameHistoryEntry) []NameChange {
	result := make([]NameChange, len(entries))
	for i, e := range entries {
		result[i] = NameChange{Name: e.Name, ChangedAt: e.ChangedAt}
	}
	return result
}

// Activity is a player's aggregated activity over a window
type Activity struct {
	PlayerID       int64      `json:"player_id"`
	Hours          int        `json:"hours"`
	SnapshotCount  int        `json:"snapshot_count"`
	OnlineCount    int        `json:"online_count"`
	OnlineRatio    float64    `json:"online_ratio"`
	Sessions       int        `json:"sessions"`
	LongestSession *int64     `json:"longest_session_seconds,omitempty"`
	LastSeenOnline *time.Time `json:"last_seen_online,omitempty"`
}

// ActivityFromQuery converts a query.Activity
func ActivityFromQuery(a *query.Activity) Activity {
	return Activity{
		PlayerID:       int64(a.PlayerID),
		Hours:          a.Hours,
		SnapshotCount:  a.SnapshotCount,
		OnlineCount:    a.OnlineCount,
		OnlineRatio:    a.OnlineRatio,
		Sessions:       a.Sessions,
		LongestSession: a.LongestSession,
		LastSeenOnline: a.LastSeenOnline,
	}
}

// PollingCycle is the log of one polling cycle
type PollingCycle struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	PlayersCount int       `json:"players_count"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	DurationMs   int64     `json:"duration_ms"`
	Errors       []string  `json:"errors"`
}

// PollingCycleFromModel converts a model.PollingCycleLog
func PollingCycleFromModel(l *model.PollingCycleLog) PollingCycle {
	errs := l.Errors
	if errs == nil {
		errs = []string{}
	}
	return PollingCycle{
		ID:           l.ID,
		RunID:        l.RunID,
		Timestamp:    l.Timestamp,
		PlayersCount: l.PlayersCount,
		SuccessCount: l.SuccessCount,
		ErrorCount:   l.ErrorCount,
		DurationMs:   l.DurationMs,
		Errors:       errs,
	}
}

// PollingCyclesFromModel converts a list of cycle logs
func PollingCyclesFromModel(logs []*model.PollingCycleLog) []PollingCycle {
	result := make([]PollingCycle, len(logs))
	for i, l := range logs {
		result[i] = PollingCycleFromModel(l)
	}
	return result
}

// PollingSummary aggregates cycle logs over a window
type PollingSummary struct {
	Hours           int     `json:"hours"`
	TotalPolls      int     `json:"total_polls"`
	SuccessfulPolls int     `json:"successful_polls"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	TotalErrors     int     `json:"total_errors"`
}

// PollingSummaryFromQuery converts a query.PollingSummary
func PollingSummaryFromQuery(s *query.PollingSummary) PollingSummary {
	return PollingSummary{
		Hours:           s.Hours,
		TotalPolls:      s.TotalPolls,
		SuccessfulPolls: s.SuccessfulPolls,
		SuccessRate:     s.SuccessRate,
		AvgDurationMs:   s.AvgDurationMs,
		TotalErrors:     s.TotalErrors,
	}
}

// SchedulerStatus reports the polling scheduler
type SchedulerStatus struct {
	State           string        `json:"state"`
	IsScheduled     bool          `json:"is_scheduled"`
	IsRunning       bool          `json:"is_running"`
	IntervalMinutes float64       `json:"interval_minutes"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	LastRunAt       *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time    `json:"next_run_at,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	CyclesRun       int           `json:"cycles_run"`
	CyclesSkipped   int           `json:"cycles_skipped"`
	LastCycle       *PollingCycle `json:"last_cycle,omitempty"`
}

// SchedulerStatusFromStatus converts a scheduler.Status
func SchedulerStatusFromStatus(s scheduler.Status) SchedulerStatus {
	result := SchedulerStatus{
		State:           s.State.String(),
		IsScheduled:     s.StartedAt != nil && s.State != scheduler.StateStopped,
		IsRunning:       s.State == scheduler.StateRunning,
		IntervalMinutes: s.Interval.Minutes(),
		StartedAt:       s.StartedAt,
		LastRunAt:       s.LastRunAt,
		NextRunAt:       s.NextRunAt,
		LastError:       s.LastError,
		CyclesRun:       s.CyclesRun,
		CyclesSkipped:   s.CyclesSkipped,
	}
	if s.LastCycle != nil {
		cycle := PollingCycleFromModel(s.LastCycle)
		result.LastCycle = &cycle
	}
	return result
}
