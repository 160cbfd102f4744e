package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:      retries,
		BaseDelay:       time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Options{Config: fastConfig(3), ErrorChecker: isTransient},
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Options{Config: fastConfig(3), ErrorChecker: isTransient, Operation: "upsert"},
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errTransient
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), Options{Config: fastConfig(3), ErrorChecker: isTransient},
		func(ctx context.Context) (struct{}, error) {
			calls++
			return struct{}{}, permanent
		})

	assert.ErrorIs(t, err, permanent)
	assert.False(t, IsExhausted(err))
	assert.Equal(t, 1, calls)
}

func TestDo_NilCheckerNeverRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{Config: fastConfig(3)},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, errTransient
		})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Options{Config: fastConfig(2), ErrorChecker: isTransient, Operation: "query"},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errTransient
		})

	require.Error(t, err)
	assert.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "query", exhausted.Operation)
	assert.Equal(t, 3, exhausted.MaxAttempts)
	assert.Contains(t, err.Error(), "retry attempts exhausted for query")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, BackoffMultiple: 2}

	calls := 0
	_, err := Do(ctx, Options{Config: cfg, ErrorChecker: isTransient},
		func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, errTransient
		})

	// The error is returned as is once the context is done
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestConfig_CalculateDelay(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffMultiple: 2}

	assert.Equal(t, 100*time.Millisecond, cfg.calculateDelay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.calculateDelay(1))
	assert.Equal(t, 400*time.Millisecond, cfg.calculateDelay(2))
	assert.Equal(t, time.Second, cfg.calculateDelay(10))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Greater(t, cfg.MaxDelay, cfg.BaseDelay)
}
