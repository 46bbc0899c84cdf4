package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players       map[model.PlayerID]*model.TrackedPlayer
	upstreamIndex map[string]model.PlayerID
	names         map[model.PlayerID][]*model.NameHistoryEntry
	snapshots     map[model.PlayerID][]*model.PlayerSnapshot
	cycles        []*model.PollingCycleLog

	nextPlayerID   model.PlayerID
	nextNameID     int64
	nextSnapshotID int64
	nextCycleID    int64
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:       make(map[model.PlayerID]*model.TrackedPlayer),
		upstreamIndex: make(map[string]model.PlayerID),
		names:         make(map[model.PlayerID][]*model.NameHistoryEntry),
		snapshots:     make(map[model.PlayerID][]*model.PlayerSnapshot),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op
func (s *Storage) Close() error {
	return nil
}

// Tracked player operations

func (s *Storage) ListActivePlayers(ctx context.Context) ([]*model.PlayerWithSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.PlayerWithSnapshot, 0, len(s.players))
	for _, p := range s.players {
		if !p.IsActive {
			continue
		}
		pws := &model.PlayerWithSnapshot{Player: copyPlayer(p)}
		if snaps := s.snapshots[p.ID]; len(snaps) > 0 {
			pws.LatestSnapshot = copySnapshot(latest(snaps))
		}
		result = append(result, pws)
	}

	slices.SortFunc(result, func(a, b *model.PlayerWithSnapshot) int {
		return cmp.Compare(a.Player.ID, b.Player.ID)
	})
	return result, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.TrackedPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return copyPlayer(p), nil
}

func (s *Storage) GetPlayerByUpstreamID(ctx context.Context, upstreamID string) (*model.TrackedPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.upstreamIndex[upstreamID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return copyPlayer(s.players[id]), nil
}

func (s *Storage) AddPlayer(ctx context.Context, player *model.TrackedPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.upstreamIndex[player.UpstreamID]; exists {
		return model.ErrDuplicatePlayer
	}

	s.nextPlayerID++
	player.ID = s.nextPlayerID
	s.players[player.ID] = copyPlayer(player)
	s.upstreamIndex[player.UpstreamID] = player.ID
	return nil
}

func (s *Storage) RenamePlayer(ctx context.Context, id model.PlayerID, newName string, changedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return false, model.ErrPlayerNotFound
	}
	if p.CurrentName == newName {
		return false, nil
	}

	s.nextNameID++
	s.names[id] = append(s.names[id], &model.NameHistoryEntry{
		ID:        s.nextNameID,
		PlayerID:  id,
		Name:      newName,
		ChangedAt: changedAt,
	})
	p.CurrentName = newName
	p.UpdatedAt = changedAt
	return true, nil
}

func (s *Storage) SetPlayerActive(ctx context.Context, id model.PlayerID, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return model.ErrPlayerNotFound
	}
	p.IsActive = active
	p.UpdatedAt = at
	return nil
}

func (s *Storage) ListNameHistory(ctx context.Context, id model.PlayerID) ([]*model.NameHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.players[id]; !ok {
		return nil, model.ErrPlayerNotFound
	}

	entries := s.names[id]
	result := make([]*model.NameHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := *entries[i]
		result = append(result, &e)
	}
	return result, nil
}

// Snapshot operations

func (s *Storage) AppendSnapshot(ctx context.Context, snapshot *model.PlayerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[snapshot.PlayerID]; !ok {
		return model.ErrPlayerNotFound
	}

	s.nextSnapshotID++
	snapshot.ID = s.nextSnapshotID
	s.snapshots[snapshot.PlayerID] = append(s.snapshots[snapshot.PlayerID], copySnapshot(snapshot))
	return nil
}

func (s *Storage) QuerySnapshots(ctx context.Context, id model.PlayerID, from, to time.Time) ([]*model.PlayerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*model.PlayerSnapshot{}
	for _, snap := range s.snapshots[id] {
		if !from.IsZero() && snap.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && snap.Timestamp.After(to) {
			continue
		}
		result = append(result, copySnapshot(snap))
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
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCycleID++
	log.ID = s.nextCycleID
	entry := *log
	entry.Errors = slices.Clone(log.Errors)
	s.cycles = append(s.cycles, &entry)
	return nil
}

func (s *Storage) QueryCycleLogs(ctx context.Context, since time.Time) ([]*model.PollingCycleLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*model.PollingCycleLog{}
	for _, c := range s.cycles {
		if c.Timestamp.Before(since) {
			continue
		}
		entry := *c
		entry.Errors = slices.Clone(c.Errors)
		result = append(result, &entry)
	}

	slices.SortFunc(result, func(a, b *model.PollingCycleLog) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return result, nil
}

// latest returns the most recently captured snapshot, preferring the later insert on ties
func latest(snaps []*model.PlayerSnapshot) *model.PlayerSnapshot {
	best := snaps[0]
	for _, snap := range snaps[1:] {
		if !snap.Timestamp.Before(best.Timestamp) {
			best = snap
		}
	}
	return best
}

func copyPlayer(p *model.TrackedPlayer) *model.TrackedPlayer {
	c := *p
	return &c
}

func copySnapshot(snap *model.PlayerSnapshot) *model.PlayerSnapshot {
	c := *snap
	return &c
}
