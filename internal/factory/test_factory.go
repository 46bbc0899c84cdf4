package factory

import (
	"time"

	"github.com/mcoot/playerwatch/internal/cache"
	"github.com/mcoot/playerwatch/internal/dependencies/mocks"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/services/polling"
	"github.com/mcoot/playerwatch/internal/services/scheduler"
	"github.com/mcoot/playerwatch/internal/storage/memory"
	"github.com/mcoot/playerwatch/internal/testutil"
)

// TestServerID is the upstream server polled by test apps
const TestServerID = "srv-1"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockUpstream *mocks.MockUpstream
	Prometheus   *metrics.Prometheus
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockUpstream := mocks.NewMockUpstream()
	recorder := metrics.New()
	logger := testutil.NopLogger()

	cfg := Config{
		Polling: polling.Config{
			ServerID:    TestServerID,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Scheduler: scheduler.Config{
			Interval:         5 * time.Minute,
			StopPollInterval: time.Millisecond,
		},
	}
	responseCache := cache.New(cache.Config{Enabled: true, SizeMB: 1, TTL: time.Minute}, logger)

	app := newWithDependencies(store, mockUpstream, mockClock, recorder, responseCache, cfg, logger)

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockUpstream: mockUpstream,
		Prometheus:   recorder,
	}
}
