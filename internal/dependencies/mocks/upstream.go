package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/playerwatch/internal/upstream"
)

// MockUpstream is a scriptable stand-in for the upstream client
type MockUpstream struct {
	mu sync.Mutex

	snapshot *upstream.ServerSnapshot
	// fetchErrs are returned by successive fetches before the snapshot is
	fetchErrs []error
	search    map[string][]upstream.Player
	searchErr error

	fetchCalls  int
	searchCalls int

	// hold, when set, parks fetches until it is closed
	hold    chan struct{}
	holding chan struct{}
}

// NewMockUpstream creates a MockUpstream serving an empty server
func NewMockUpstream() *MockUpstream {
	return &MockUpstream{
		snapshot: NewServerSnapshot(),
		search:   make(map[string][]upstream.Player),
	}
}

// NewServerSnapshot returns an empty, online server snapshot
func NewServerSnapshot() *upstream.ServerSnapshot {
	return &upstream.ServerSnapshot{
		Server:   upstream.Server{ID: "srv-1", Name: "Test Server", Status: "online", MaxPlayers: 64},
		Players:  make(map[string]upstream.Player),
		Sessions: make(map[string][]upstream.Session),
		Faults:   make(map[string]error),
	}
}

// SetSnapshot replaces the server state returned by fetches
func (m *MockUpstream) SetSnapshot(snap *upstream.ServerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
}

// FailFetches queues errors returned by the next fetches, one per call
func (m *MockUpstream) FailFetches(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrs = append(m.fetchErrs, errs...)
}

// SetSearchResults sets the players returned when searching for name
func (m *MockUpstream) SetSearchResults(name string, players ...upstream.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.search[name] = players
}

// SetSearchError makes every search fail with err
func (m *MockUpstream) SetSearchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

// HoldFetches parks every fetch until release is called. entered is closed
// once the first fetch is parked.
func (m *MockUpstream) HoldFetches() (entered <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hold := make(chan struct{})
	m.hold = hold
	m.holding = make(chan struct{})
	var once sync.Once
	return m.holding, func() {
		once.Do(func() {
			m.mu.Lock()
			m.hold = nil
			m.mu.Unlock()
			close(hold)
		})
	}
}

// FetchServerSnapshot returns the next queued error or the current snapshot
func (m *MockUpstream) FetchServerSnapshot(ctx context.Context, _ string) (*upstream.ServerSnapshot, error) {
	m.mu.Lock()
	if hold := m.hold; hold != nil {
		select {
		case <-m.holding:
		default:
			close(m.holding)
		}
		m.mu.Unlock()
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()
	m.fetchCalls++
	if len(m.fetchErrs) > 0 {
		err := m.fetchErrs[0]
		m.fetchErrs = m.fetchErrs[1:]
		return nil, err
	}
	return m.snapshot, nil
}

// SearchPlayers returns the configured results for name
func (m *MockUpstream) SearchPlayers(_ context.Context, name string) ([]upstream.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.search[name], nil
}

// FetchCalls returns how many fetches were made
func (m *MockUpstream) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// SearchCalls returns how many searches were made
func (m *MockUpstream) SearchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls
}
