package sqlite

import (
	"database/sql"
	"time"

	"github.com/mcoot/playerwatch/internal/model"
)

// Times are stored as INTEGER unix milliseconds in UTC.

type playerRow struct {
	id         int64
	upstreamID string
	name       string
	serverID   string
	active     bool
	createdAt  int64
	updatedAt  int64
}

func (r *playerRow) dest() []any {
	return []any{&r.id, &r.upstreamID, &r.name, &r.serverID, &r.active, &r.createdAt, &r.updatedAt}
}

func (r *playerRow) model() *model.TrackedPlayer {
	return &model.TrackedPlayer{
		ID:          model.PlayerID(r.id),
		UpstreamID:  r.upstreamID,
		CurrentName: r.name,
		ServerID:    r.serverID,
		IsActive:    r.active,
		CreatedAt:   fromMillis(r.createdAt),
		UpdatedAt:   fromMillis(r.updatedAt),
	}
}

// nullableSnapshotRow also scans the all-NULL row produced by a LEFT JOIN miss
type nullableSnapshotRow struct {
	id           sql.NullInt64
	playerID     sql.NullInt64
	timestamp    sql.NullInt64
	online       sql.NullBool
	sessionStart sql.NullInt64
	sessionEnd   sql.NullInt64
	durationSec  sql.NullInt64
	firstTime    sql.NullBool
	private      sql.NullBool
}

func (r *nullableSnapshotRow) dest() []any {
	return []any{&r.id, &r.playerID, &r.timestamp, &r.online, &r.sessionStart,
		&r.sessionEnd, &r.durationSec, &r.firstTime, &r.private}
}

func (r *nullableSnapshotRow) model() *model.PlayerSnapshot {
	if !r.id.Valid {
		return nil
	}
	return &model.PlayerSnapshot{
		ID:           r.id.Int64,
		PlayerID:     model.PlayerID(r.playerID.Int64),
		Timestamp:    fromMillis(r.timestamp.Int64),
		IsOnline:     r.online.Bool,
		SessionStart: timePtr(r.sessionStart),
		SessionEnd:   timePtr(r.sessionEnd),
		DurationSec:  intPtr(r.durationSec),
		FirstTime:    boolPtr(r.firstTime),
		Private:      boolPtr(r.private),
	}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
