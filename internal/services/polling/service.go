package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/playerwatch/internal/dependencies/clock"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/retry"
	"github.com/mcoot/playerwatch/internal/storage"
	"github.com/mcoot/playerwatch/internal/upstream"
)

// Upstream is the subset of the upstream client used for polling
type Upstream interface {
	FetchServerSnapshot(ctx context.Context, serverID string) (*upstream.ServerSnapshot, error)
	SearchPlayers(ctx context.Context, name string) ([]upstream.Player, error)
}

// Config holds polling configuration
type Config struct {
	ServerID    string
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultConfig returns the default retry settings; ServerID has no default
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// Service reconciles tracked players against the upstream server state
type Service struct {
	store    storage.Storage
	upstream Upstream
	clock    clock.Clock
	metrics  metrics.Recorder
	cfg      Config
	logger   *slog.Logger

	mu        sync.RWMutex
	listeners []func()
}

// New creates a new polling service
func New(store storage.Storage, up Upstream, clk clock.Clock, recorder metrics.Recorder, cfg Config, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Noop()
	}
	return &Service{
		store:    store,
		upstream: up,
		clock:    clk,
		metrics:  recorder,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "polling")),
	}
}

// OnChange registers fn to run after stored data changes
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notifyChange() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn()
	}
}

// ServerID returns the upstream server being polled
func (s *Service) ServerID() string {
	return s.cfg.ServerID
}

// PollAllPlayers runs one polling cycle over every active player.
//
// Failures of individual players are recorded in the returned cycle log and
// do not fail the cycle. Only failing to list players, to fetch the server
// after all retries, or to store the cycle log is returned as an error.
func (s *Service) PollAllPlayers(ctx context.Context) (*model.PollingCycleLog, error) {
	start := s.clock.Now()
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID))

	logger.Info("starting polling cycle")

	players, err := s.store.ListActivePlayers(ctx)
	if err != nil {
		s.metrics.IncCycleFailures()
		logger.Error("failed to list active players", slog.String("error", err.Error()))
		return nil, fmt.Errorf("list active players: %w", err)
	}
	logger.Info("found active players", slog.Int("count", len(players)))

	snap, err := retry.Do(ctx, s.retryPolicy(logger, upstream.OpFetchServer), func(ctx context.Context) (*upstream.ServerSnapshot, error) {
		return s.upstream.FetchServerSnapshot(ctx, s.cfg.ServerID)
	})
	if err != nil {
		s.metrics.IncCycleFailures()
		logger.Error("failed to fetch server", slog.String("error", err.Error()))
		return nil, fmt.Errorf("fetch server %s: %w", s.cfg.ServerID, err)
	}
	logger.Debug("fetched server",
		slog.String("server", snap.Server.Name),
		slog.String("status", snap.Server.Status),
		slog.Int("online", len(snap.Players)),
		slog.Int("max_players", snap.Server.MaxPlayers),
	)

	cycle := &model.PollingCycleLog{
		RunID:        runID,
		Timestamp:    start,
		PlayersCount: len(players),
		Errors:       []string{},
	}

	for _, pws := range players {
		if err := s.pollPlayer(ctx, logger, pws.Player, snap); err != nil {
			perr := &model.PlayerError{PlayerID: pws.Player.ID, Name: pws.Player.CurrentName, Err: err}
			cycle.ErrorCount++
			cycle.Errors = append(cycle.Errors, perr.Error())
			logger.Error("player poll failed",
				slog.Int64("player_id", int64(pws.Player.ID)),
				slog.String("error", perr.Error()),
			)
			continue
		}
		cycle.SuccessCount++
	}

	cycle.DurationMs = s.clock.Now().Sub(start).Milliseconds()

	if err := s.store.AppendCycleLog(ctx, cycle); err != nil {
		s.metrics.IncCycleFailures()
		logger.Error("failed to store cycle log", slog.String("error", err.Error()))
		return nil, fmt.Errorf("append cycle log: %w", err)
	}

	s.metrics.ObserveCycle(cycle)
	s.notifyChange()

	logger.Info("polling cycle completed",
		slog.Int64("duration_ms", cycle.DurationMs),
		slog.Int("success", cycle.SuccessCount),
		slog.Int("errors", cycle.ErrorCount),
		slog.Int("total", cycle.PlayersCount),
	)
	return cycle, nil
}

func (s *Service) pollPlayer(ctx context.Context, logger *slog.Logger, player *model.TrackedPlayer, snap *upstream.ServerSnapshot) error {
	if fault, ok := snap.Faults[player.UpstreamID]; ok {
		return fault
	}

	now := s.clock.Now()
	var online *upstream.Player
	if up, ok := snap.Players[player.UpstreamID]; ok {
		online = &up
	}

	if online != nil && online.Name != "" && online.Name != player.CurrentName {
		renamed, err := s.store.RenamePlayer(ctx, player.ID, online.Name, now)
		if err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		if renamed {
			logger.Info("player renamed",
				slog.String("upstream_id", player.UpstreamID),
				slog.String("from", player.CurrentName),
				slog.String("to", online.Name),
			)
		}
	}

	snapshot, err := BuildSnapshot(player.ID, online, snap.Sessions[player.UpstreamID], now)
	if err != nil {
		return err
	}

	if err := s.store.AppendSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	logger.Debug("stored snapshot",
		slog.Int64("player_id", int64(player.ID)),
		slog.Bool("online", snapshot.IsOnline),
	)
	return nil
}

// AddPlayerByName starts tracking the best upstream match for name.
//
// A previously removed player is reactivated rather than added again.
func (s *Service) AddPlayerByName(ctx context.Context, name string) (*model.TrackedPlayer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidPlayerName
	}

	logger := s.logger.With(slog.String("search", name))
	logger.Info("adding player by name")

	results, err := retry.Do(ctx, s.retryPolicy(logger, upstream.OpSearchPlayers), func(ctx context.Context) ([]upstream.Player, error) {
		return s.upstream.SearchPlayers(ctx, name)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", model.ErrNoUpstreamMatch, name)
	}

	match := results[0]
	matchName := match.Name
	if matchName == "" {
		matchName = name
	}
	now := s.clock.Now()

	existing, err := s.store.GetPlayerByUpstreamID(ctx, match.ID)
	switch {
	case err == nil && existing.IsActive:
		return nil, fmt.Errorf("%w: %s", model.ErrDuplicatePlayer, existing.CurrentName)
	case err == nil:
		return s.reactivate(ctx, logger, existing, matchName, now)
	case !errors.Is(err, model.ErrPlayerNotFound):
		return nil, err
	}

	player := &model.TrackedPlayer{
		UpstreamID:  match.ID,
		CurrentName: matchName,
		ServerID:    s.cfg.ServerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.AddPlayer(ctx, player); err != nil {
		return nil, err
	}

	s.notifyChange()
	logger.Info("player added",
		slog.String("name", player.CurrentName),
		slog.String("upstream_id", player.UpstreamID),
		slog.Int64("player_id", int64(player.ID)),
	)
	return player, nil
}

func (s *Service) reactivate(ctx context.Context, logger *slog.Logger, player *model.TrackedPlayer, name string, now time.Time) (*model.TrackedPlayer, error) {
	if err := s.store.SetPlayerActive(ctx, player.ID, true, now); err != nil {
		return nil, err
	}
	if _, err := s.store.RenamePlayer(ctx, player.ID, name, now); err != nil {
		return nil, err
	}

	updated, err := s.store.GetPlayer(ctx, player.ID)
	if err != nil {
		return nil, err
	}

	s.notifyChange()
	logger.Info("player reactivated",
		slog.String("name", updated.CurrentName),
		slog.Int64("player_id", int64(updated.ID)),
	)
	return updated, nil
}

// RemovePlayer stops tracking a player; its history is kept
func (s *Service) RemovePlayer(ctx context.Context, id model.PlayerID) error {
	if _, err := s.store.GetPlayer(ctx, id); err != nil {
		return err
	}
	if err := s.store.SetPlayerActive(ctx, id, false, s.clock.Now()); err != nil {
		return err
	}

	s.notifyChange()
	s.logger.Info("player removed", slog.Int64("player_id", int64(id)))
	return nil
}

func (s *Service) retryPolicy(logger *slog.Logger, op string) retry.Policy {
	return retry.Policy{
		MaxAttempts: s.cfg.MaxAttempts,
		BaseDelay:   s.cfg.RetryDelay,
		Clock:       s.clock,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("upstream request failed, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", s.cfg.MaxAttempts),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
		},
	}
}
