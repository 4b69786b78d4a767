package retry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), slog.New(slog.DiscardHandler), "dial", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "bound", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bound", got)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(), slog.New(slog.DiscardHandler), "dial", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("unreachable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	invalid := errors.New("invalid credentials")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), slog.New(slog.DiscardHandler), "bind", func(ctx context.Context) (int, error) {
		calls++
		return 0, &Permanent{Err: invalid}
	})
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, 1, calls)
}

func TestBackoffCapped(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	assert.Equal(t, time.Second, Backoff(0, cfg))
	assert.Equal(t, 2*time.Second, Backoff(1, cfg))
	assert.Equal(t, 3*time.Second, Backoff(5, cfg))
}
