package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

func TestPolicy_ShouldRetry(t *testing.T) {
	p := NewPolicy(3, time.Millisecond, "quota exceeded")

	assert.False(t, p.ShouldRetry(nil))
	assert.True(t, p.ShouldRetry(exception.NewBatchError("writer", "upload failed", errors.New("x"), false, true)))
	assert.False(t, p.ShouldRetry(exception.NewBatchError("writer", "bad schema", errors.New("x"), false, false)))
	assert.True(t, p.ShouldRetry(errors.New("dial tcp: connection refused")))
	assert.True(t, p.ShouldRetry(errors.New("googleapi: quota exceeded")))
	assert.False(t, p.ShouldRetry(errors.New("permission denied")))
}

func TestPolicy_Backoff(t *testing.T) {
	p := NewPolicy(4, 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, p.GetBackoffInterval(1))
	assert.Equal(t, 200*time.Millisecond, p.GetBackoffInterval(2))
	assert.Equal(t, 400*time.Millisecond, p.GetBackoffInterval(3))
	assert.Equal(t, 1, NewPolicy(0, 0).GetMaxAttempts())
}

func TestNewPolicyFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Stationcast.Retry.MaxAttempts = 5
	cfg.Stationcast.Retry.InitialIntervalMillis = 20
	p := NewPolicyFromConfig(cfg)
	assert.Equal(t, 5, p.GetMaxAttempts())
	assert.Equal(t, 20*time.Millisecond, p.GetBackoffInterval(1))
}

func TestDo(t *testing.T) {
	retryable := exception.NewBatchError("writer", "upload failed", errors.New("503"), false, true)

	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), NewPolicy(3, time.Millisecond), "upload", func(context.Context) error {
			calls++
			if calls < 3 {
				return retryable
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), NewPolicy(2, time.Millisecond), "upload", func(context.Context) error {
			calls++
			return retryable
		})
		assert.Same(t, retryable, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry fatal errors", func(t *testing.T) {
		calls := 0
		fatal := errors.New("invalid argument")
		err := Do(context.Background(), NewPolicy(5, time.Millisecond), "upload", func(context.Context) error {
			calls++
			return fatal
		})
		assert.Same(t, fatal, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Do(ctx, NewPolicy(5, time.Hour), "upload", func(context.Context) error {
			calls++
			cancel()
			return retryable
		})
		assert.Same(t, retryable, err)
		assert.Equal(t, 1, calls)
	})
}
