package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// probeWithRetry runs probe until it succeeds or the policy's attempt budget
// is spent. A probe that exceeds its timeout counts as a failed attempt.
func (m *Manager) probeWithRetry(ctx context.Context, probe func(context.Context) error) error {
	policy := m.cfg.Retry
	attempts := policy.MaxAttempts

	err := probe(ctx)
	for attempt := 1; err != nil; attempt++ {
		delay := policy.Delay(attempt)
		m.log.Error("database connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.String("host", m.cfg.Host),
			zap.String("database", m.cfg.Name),
			zap.Error(err))

		if attempt >= attempts {
			m.log.Error("database connectivity exhausted", zap.Int("attempts", attempt))
			return fmt.Errorf("%w after %d attempts: %w", ErrConnectivityExhausted, attempt, err)
		}

		m.log.Info("retrying database connection",
			zap.Duration("delay", delay),
			zap.Int("next_attempt", attempt+1))

		if serr := m.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%w: %w", ErrConnectivityExhausted, serr)
		}
		err = probe(ctx)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
