package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Tracked player operations

func (s *Storage) ListActivePlayers(ctx context.Context) ([]*model.PlayerWithSnapshot, error) {
	ids, err := s.client.ZRange(ctx, playersKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.PlayerWithSnapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt player set entry %q: %w", idStr, err)
		}
		keys[i] = playerKey(model.PlayerID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var active []*model.TrackedPlayer
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p model.TrackedPlayer
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, err
		}
		if p.IsActive {
			active = append(active, &p)
		}
	}

	// Latest snapshot per player in one round trip
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(active))
	for i, p := range active {
		cmds[i] = pipe.ZRevRange(ctx, snapshotsKey(p.ID), 0, 0)
	}
	if len(active) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
	}

	result := make([]*model.PlayerWithSnapshot, 0, len(active))
	for i, p := range active {
		pws := &model.PlayerWithSnapshot{Player: p}
		if members := cmds[i].Val(); len(members) > 0 {
			var snap model.PlayerSnapshot
			if err := decodeMember(members[0], &snap); err != nil {
				return nil, err
			}
			pws.LatestSnapshot = &snap
		}
		result = append(result, pws)
	}
	return result, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.TrackedPlayer, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.TrackedPlayer
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) GetPlayerByUpstreamID(ctx context.Context, upstreamID string) (*model.TrackedPlayer, error) {
	// Look up player ID from upstream index
	idStr, err := s.client.Get(ctx, upstreamIndexKey(upstreamID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt upstream index for %s: %w", upstreamID, err)
	}
	return s.GetPlayer(ctx, model.PlayerID(id))
}

// AddPlayer claims the upstream id and writes the player in one WATCH/MULTI
// transaction, so a lost race reports ErrDuplicatePlayer and a failed write
// leaves no index entry behind.
func (s *Storage) AddPlayer(ctx context.Context, player *model.TrackedPlayer) error {
	idxKey := upstreamIndexKey(player.UpstreamID)

	var id int64
	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, idxKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrDuplicatePlayer
		}

		id, err = tx.Incr(ctx, sequenceKey("player")).Result()
		if err != nil {
			return err
		}
		stored := *player
		stored.ID = model.PlayerID(id)
		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, idxKey, id, 0)
			pipe.Set(ctx, playerKey(stored.ID), data, 0)
			pipe.ZAdd(ctx, playersKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
			return nil
		})
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			// EXEC does not roll back commands that succeeded before a failing one
			_ = s.client.Del(context.WithoutCancel(ctx), idxKey, playerKey(stored.ID)).Err()
		}
		return err
	}

	for range max(s.cfg.MaxTxRetries, 1) {
		err := s.client.Watch(ctx, txf, idxKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		player.ID = model.PlayerID(id)
		return nil
	}
	return fmt.Errorf("add player %s: too much contention", player.UpstreamID)
}

func (s *Storage) RenamePlayer(ctx context.Context, id model.PlayerID, newName string, changedAt time.Time) (bool, error) {
	renamed := false
	err := s.updatePlayer(ctx, id, func(tx *redis.Tx, p *model.TrackedPlayer) (func(redis.Pipeliner) error, error) {
		renamed = false
		if p.CurrentName == newName {
			return nil, nil
		}

		nameID, err := tx.Incr(ctx, sequenceKey("name")).Result()
		if err != nil {
			return nil, err
		}
		entry, err := json.Marshal(&model.NameHistoryEntry{
			ID:        nameID,
			PlayerID:  id,
			Name:      newName,
			ChangedAt: changedAt,
		})
		if err != nil {
			return nil, err
		}

		p.CurrentName = newName
		p.UpdatedAt = changedAt
		renamed = true
		return func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, namesKey(id), entry)
			return nil
		}, nil
	})
	if err != nil {
		return false, err
	}
	return renamed, nil
}

func (s *Storage) SetPlayerActive(ctx context.Context, id model.PlayerID, active bool, at time.Time) error {
	return s.updatePlayer(ctx, id, func(_ *redis.Tx, p *model.TrackedPlayer) (func(redis.Pipeliner) error, error) {
		p.IsActive = active
		p.UpdatedAt = at
		return func(redis.Pipeliner) error { return nil }, nil
	})
}

// updatePlayer applies fn to the stored player under WATCH and writes the
// result together with any extra commands fn returns. A nil extra means no
// change is needed.
func (s *Storage) updatePlayer(
	ctx context.Context,
	id model.PlayerID,
	fn func(tx *redis.Tx, p *model.TrackedPlayer) (func(redis.Pipeliner) error, error),
) error {
	key := playerKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrPlayerNotFound
			}
			return err
		}

		var p model.TrackedPlayer
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}

		extra, err := fn(tx, &p)
		if err != nil || extra == nil {
			return err
		}

		updated, err := json.Marshal(&p)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return extra(pipe)
		})
		return err
	}

	for range max(s.cfg.MaxTxRetries, 1) {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update player %d: too much contention", id)
}

func (s *Storage) ListNameHistory(ctx context.Context, id model.PlayerID) ([]*model.NameHistoryEntry, error) {
	if err := s.requirePlayer(ctx, id); err != nil {
		return nil, err
	}

	values, err := s.client.LRange(ctx, namesKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.NameHistoryEntry, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var entry model.NameHistoryEntry
		if err := json.Unmarshal([]byte(values[i]), &entry); err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}
	return result, nil
}

// Snapshot operations

func (s *Storage) AppendSnapshot(ctx context.Context, snapshot *model.PlayerSnapshot) error {
	if err := s.requirePlayer(ctx, snapshot.PlayerID); err != nil {
		return err
	}

	id, err := s.client.Incr(ctx, sequenceKey("snapshot")).Result()
	if err != nil {
		return err
	}
	snapshot.ID = id

	member, err := encodeMember(id, snapshot)
	if err != nil {
		return err
	}
	return s.client.ZAdd(ctx, snapshotsKey(snapshot.PlayerID), redis.Z{
		Score:  float64(snapshot.Timestamp.UnixMilli()),
		Member: member,
	}).Err()
}

func (s *Storage) QuerySnapshots(ctx context.Context, id model.PlayerID, from, to time.Time) ([]*model.PlayerSnapshot, error) {
	members, err := s.client.ZRangeByScore(ctx, snapshotsKey(id), &redis.ZRangeBy{
		Min: scoreBound(from, "-inf"),
		Max: scoreBound(to, "+inf"),
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.PlayerSnapshot, 0, len(members))
	for _, m := range members {
		var snap model.PlayerSnapshot
		if err := decodeMember(m, &snap); err != nil {
			return nil, err
		}
		result = append(result, &snap)
	}

	slices.SortFunc(result, func(a, b *model.PlayerSnapshot) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return result, nil
}

// Polling cycle operations

func (s *Storage) AppendCycleLog(ctx context.Context, log *model.PollingCycleLog) error {
	id, err := s.client.Incr(ctx, sequenceKey("cycle")).Result()
	if err != nil {
		return err
	}
	log.ID = id

	member, err := encodeMember(id, log)
	if err != nil {
		return err
	}
	return s.client.ZAdd(ctx, cyclesKey(), redis.Z{
		Score:  float64(log.Timestamp.UnixMilli()),
		Member: member,
	}).Err()
}

func (s *Storage) QueryCycleLogs(ctx context.Context, since time.Time) ([]*model.PollingCycleLog, error) {
	members, err := s.client.ZRevRangeByScore(ctx, cyclesKey(), &redis.ZRangeBy{
		Min: scoreBound(since, "-inf"),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.PollingCycleLog, 0, len(members))
	for _, m := range members {
		var log model.PollingCycleLog
		if err := decodeMember(m, &log); err != nil {
			return nil, err
		}
		result = append(result, &log)
	}
	return result, nil
}

func (s *Storage) requirePlayer(ctx context.Context, id model.PlayerID) error {
	n, err := s.client.Exists(ctx, playerKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

// encodeMember prefixes the JSON value with its zero-padded id so that
// members with equal scores sort in insertion order
func encodeMember(id int64, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%020d|%s", id, data), nil
}

func decodeMember(member string, v any) error {
	_, data, ok := strings.Cut(member, "|")
	if !ok {
		return fmt.Errorf("malformed sorted set member")
	}
	return json.Unmarshal([]byte(data), v)
}

func scoreBound(t time.Time, unbounded string) string {
	if t.IsZero() {
		return unbounded
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
