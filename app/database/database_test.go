package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Helpers ---

type sleepRecorder struct {
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func newTestManager(rec *sleepRecorder) *Manager {
	m := NewManager(DefaultConfig(), zap.NewNop())
	m.sleep = rec.sleep
	return m
}

// --- Tests ---

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}

	assert.Equal(t, time.Duration(0), policy.Delay(0))
	assert.Equal(t, 1*time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, 8*time.Second, policy.Delay(4))
	assert.Equal(t, 16*time.Second, policy.Delay(5))
}

func TestProbeWithRetry(t *testing.T) {
	errRefused := errors.New("connection refused")

	testCases := []struct {
		name           string
		failures       int
		expectedDelays []time.Duration
		expectedCalls  int
		expectErr      bool
	}{
		{
			name:           "Succeeds on first attempt",
			failures:       0,
			expectedDelays: nil,
			expectedCalls:  1,
		},
		{
			name:           "Succeeds after two failures",
			failures:       2,
			expectedDelays: []time.Duration{time.Second, 2 * time.Second},
			expectedCalls:  3,
		},
		{
			name:           "Succeeds on the last attempt",
			failures:       4,
			expectedDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
			expectedCalls:  5,
		},
		{
			name:           "Gives up after five failed attempts",
			failures:       5,
			expectedDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
			expectedCalls:  5,
			expectErr:      true,
		},
		{
			name:           "Exhausts the attempt budget",
			failures:       100,
			expectedDelays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
			expectedCalls:  5,
			expectErr:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			rec := &sleepRecorder{}
			m := newTestManager(rec)
			calls := 0
			probe := func(context.Context) error {
				calls++
				if calls <= tc.failures {
					return errRefused
				}
				return nil
			}

			// Act
			err := m.probeWithRetry(context.Background(), probe)

			// Assert
			assert.Equal(t, tc.expectedDelays, rec.delays)
			assert.Equal(t, tc.expectedCalls, calls)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrConnectivityExhausted)
				assert.ErrorIs(t, err, errRefused)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProbeWithRetry_LogsEachAttempt(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &sleepRecorder{}
	m := NewManager(DefaultConfig(), zap.New(core))
	m.sleep = rec.sleep

	err := m.probeWithRetry(context.Background(), func(context.Context) error {
		return errors.New("connection refused")
	})
	require.ErrorIs(t, err, ErrConnectivityExhausted)

	failed := logs.FilterMessage("database connection attempt failed").All()
	require.Len(t, failed, 5)
	for i, entry := range failed {
		fields := entry.ContextMap()
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.EqualValues(t, i+1, fields["attempt"])
		assert.EqualValues(t, 5, fields["max_attempts"])
		assert.Equal(t, time.Second<<i, fields["backoff"])
		assert.Equal(t, "connection refused", fields["error"])
	}

	retries := logs.FilterMessage("retrying database connection").All()
	require.Len(t, retries, 4)
	assert.Equal(t, 8*time.Second, retries[3].ContextMap()["delay"])
	assert.EqualValues(t, 5, retries[3].ContextMap()["next_attempt"])

	assert.Equal(t, 1, logs.FilterMessage("database connectivity exhausted").Len())
}

func TestProbeWithRetry_ContextCancelledWhileWaiting(t *testing.T) {
	rec := &sleepRecorder{err: context.Canceled}
	m := newTestManager(rec)

	err := m.probeWithRetry(context.Background(), func(context.Context) error {
		return errors.New("connection refused")
	})

	assert.ErrorIs(t, err, ErrConnectivityExhausted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.delays, 1)
}

func TestConnect_ExhaustsRetriesAgainstUnreachableHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	rec := &sleepRecorder{}
	m := NewManager(cfg, zap.NewNop())
	m.sleep = rec.sleep

	err := m.Connect(context.Background())

	assert.ErrorIs(t, err, ErrConnectivityExhausted)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, rec.delays)
	assert.False(t, m.HealthCheck(context.Background()))

	_, err = m.DB()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestManager_NotConnected(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	var dest []int
	_, err := m.Query(ctx, &dest, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)

	client, err := m.AcquireTransaction(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, client)

	_, err = m.DB()
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, m.Migrate(ctx), ErrNotConnected)
	assert.False(t, m.HealthCheck(ctx))
	assert.NoError(t, m.Close())
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=postgres dbname=ecommerce sslmode=disable connect_timeout=2",
		cfg.DSN())

	zero := Config{Host: "db"}.withDefaults()
	assert.Equal(t, DefaultMaxOpenConns, zero.MaxOpenConns)
	assert.Equal(t, DefaultConnectTimeout, zero.ConnectTimeout)
	assert.Equal(t, DefaultBaseDelay, zero.Retry.BaseDelay)
	assert.Equal(t, DefaultSSLMode, zero.SSLMode)
}

func TestTruncate(t *testing.T) {
	long := "SELECT " + strings.Repeat("x", 200)

	require.Len(t, truncate(long, maxLoggedQuery), maxLoggedQuery)
	assert.Equal(t, "SELECT 1", truncate("SELECT 1", maxLoggedQuery))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.False(t, IsSerializationFailure(nil))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
	assert.False(t, IsSerializationFailure(&pq.Error{Code: "23505"}))
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40001"}))
	assert.True(t, IsSerializationFailure(fmt.Errorf("commit: %w", &pq.Error{Code: "40P01"})))
}
