package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage"
)

//go:embed schema.sql
var schema string

// Storage is a SQLite-backed implementation of the storage interface
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dsn and applies the schema
func New(dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

const playerColumns = `p.id, p.upstream_id, p.current_name, p.server_id, p.is_active, p.created_at, p.updated_at`

const snapshotColumns = `s.id, s.player_id, s.timestamp, s.is_online, s.session_start, s.session_end, s.duration_sec, s.first_time, s.private`

// Tracked player operations

func (s *Storage) ListActivePlayers(ctx context.Context) ([]*model.PlayerWithSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+playerColumns+`, `+snapshotColumns+`
		FROM tracked_players p
		LEFT JOIN player_snapshots s ON s.id = (
			SELECT id FROM player_snapshots
			WHERE player_id = p.id
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)
		WHERE p.is_active = 1
		ORDER BY p.id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []*model.PlayerWithSnapshot{}
	for rows.Next() {
		var p playerRow
		var snap nullableSnapshotRow
		dest := append(p.dest(), snap.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, &model.PlayerWithSnapshot{
			Player:         p.model(),
			LatestSnapshot: snap.model(),
		})
	}
	return result, rows.Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.TrackedPlayer, error) {
	return s.getPlayer(ctx, `SELECT `+playerColumns+` FROM tracked_players p WHERE p.id = ?`, int64(id))
}

func (s *Storage) GetPlayerByUpstreamID(ctx context.Context, upstreamID string) (*model.TrackedPlayer, error) {
	return s.getPlayer(ctx, `SELECT `+playerColumns+` FROM tracked_players p WHERE p.upstream_id = ?`, upstreamID)
}

func (s *Storage) getPlayer(ctx context.Context, query string, arg any) (*model.TrackedPlayer, error) {
	var p playerRow
	err := s.db.QueryRowContext(ctx, query, arg).Scan(p.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return p.model(), nil
}

func (s *Storage) AddPlayer(ctx context.Context, player *model.TrackedPlayer) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_players (upstream_id, current_name, server_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(upstream_id) DO NOTHING
	`, player.UpstreamID, player.CurrentName, player.ServerID, player.IsActive,
		player.CreatedAt.UnixMilli(), player.UpdatedAt.UnixMilli())
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrDuplicatePlayer
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	player.ID = model.PlayerID(id)
	return nil
}

func (s *Storage) RenamePlayer(ctx context.Context, id model.PlayerID, newName string, changedAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT current_name FROM tracked_players WHERE id = ?`, int64(id)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, model.ErrPlayerNotFound
	}
	if err != nil {
		return false, err
	}
	if current == newName {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO name_history (player_id, name, changed_at) VALUES (?, ?, ?)`,
		int64(id), newName, changedAt.UnixMilli(),
	); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tracked_players SET current_name = ?, updated_at = ? WHERE id = ?`,
		newName, changedAt.UnixMilli(), int64(id),
	); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) SetPlayerActive(ctx context.Context, id model.PlayerID, active bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracked_players SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, at.UnixMilli(), int64(id),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Storage) ListNameHistory(ctx context.Context, id model.PlayerID) ([]*model.NameHistoryEntry, error) {
	if _, err := s.GetPlayer(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, name, changed_at FROM name_history
		WHERE player_id = ?
		ORDER BY changed_at DESC, id DESC
	`, int64(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []*model.NameHistoryEntry{}
	for rows.Next() {
		var e model.NameHistoryEntry
		var playerID, changedAt int64
		if err := rows.Scan(&e.ID, &playerID, &e.Name, &changedAt); err != nil {
			return nil, err
		}
		e.PlayerID = model.PlayerID(playerID)
		e.ChangedAt = fromMillis(changedAt)
		result = append(result, &e)
	}
	return result, rows.Err()
}

// Snapshot operations

func (s *Storage) AppendSnapshot(ctx context.Context, snap *model.PlayerSnapshot) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO player_snapshots
			(player_id, timestamp, is_online, session_start, session_end, duration_sec, first_time, private)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, int64(snap.PlayerID), snap.Timestamp.UnixMilli(), snap.IsOnline,
		nullMillis(snap.SessionStart), nullMillis(snap.SessionEnd),
		nullInt(snap.DurationSec), nullBool(snap.FirstTime), nullBool(snap.Private))
	if err != nil {
		return fmt.Errorf("insert snapshot for player %d: %w", snap.PlayerID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	snap.ID = id
	return nil
}

func (s *Storage) QuerySnapshots(ctx context.Context, id model.PlayerID, from, to time.Time) ([]*model.PlayerSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM player_snapshots s WHERE s.player_id = ?`
	args := []any{int64(id)}
	if !from.IsZero() {
		query += ` AND s.timestamp >= ?`
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += ` AND s.timestamp <= ?`
		args = append(args, to.UnixMilli())
	}
	query += ` ORDER BY s.timestamp DESC, s.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []*model.PlayerSnapshot{}
	for rows.Next() {
		var snap nullableSnapshotRow
		if err := rows.Scan(snap.dest()...); err != nil {
			return nil, err
		}
		result = append(result, snap.model())
	}
	return result, rows.Err()
}

// Polling cycle operations

func (s *Storage) AppendCycleLog(ctx context.Context, log *model.PollingCycleLog) error {
	var errs sql.NullString
	if len(log.Errors) > 0 {
		data, err := json.Marshal(log.Errors)
		if err != nil {
			return err
		}
		errs = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO polling_logs (run_id, timestamp, players_count, success_count, error_count, duration_ms, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, log.RunID, log.Timestamp.UnixMilli(), log.PlayersCount, log.SuccessCount, log.ErrorCount, log.DurationMs, errs)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = id
	return nil
}

func (s *Storage) QueryCycleLogs(ctx context.Context, since time.Time) ([]*model.PollingCycleLog, error) {
	query := `SELECT id, run_id, timestamp, players_count, success_count, error_count, duration_ms, errors FROM polling_logs`
	var args []any
	if !since.IsZero() {
		query += ` WHERE timestamp >= ?`
		args = append(args, since.UnixMilli())
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []*model.PollingCycleLog{}
	for rows.Next() {
		var log model.PollingCycleLog
		var ts int64
		var errs sql.NullString
		if err := rows.Scan(&log.ID, &log.RunID, &ts, &log.PlayersCount, &log.SuccessCount,
			&log.ErrorCount, &log.DurationMs, &errs); err != nil {
			return nil, err
		}
		log.Timestamp = fromMillis(ts)
		if errs.Valid && errs.String != "" {
			if err := json.Unmarshal([]byte(errs.String), &log.Errors); err != nil {
				return nil, fmt.Errorf("decode errors of cycle %d: %w", log.ID, err)
			}
		}
		result = append(result, &log)
	}
	return result, rows.Err()
}
