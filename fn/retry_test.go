package fn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        4 * time.Millisecond,
	}
}

func TestRetryFuncN(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		failures     int
		shouldRetry  func(error) bool
		expectErr    bool
		expectCalled int
	}{{
		name:         "first attempt succeeds",
		failures:     0,
		expectCalled: 1,
	}, {
		name:         "succeeds after retries",
		failures:     2,
		expectCalled: 3,
	}, {
		name:         "retries exhausted",
		failures:     10,
		expectErr:    true,
		expectCalled: 4,
	}, {
		name:     "permanent error not retried",
		failures: 10,
		shouldRetry: func(err error) bool {
			return false
		},
		expectErr:    true,
		expectCalled: 1,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := fastRetryConfig()
			cfg.ShouldRetry = tc.shouldRetry

			var called int
			res, err := RetryFuncN(
				context.Background(), cfg, func() (int, error) {
					called++
					if called <= tc.failures {
						return 0, errTransient
					}
					return 42, nil
				},
			)

			require.Equal(t, tc.expectCalled, called)
			if tc.expectErr {
				require.ErrorIs(t, err, errTransient)
				return
			}

			require.NoError(t, err)
			require.Equal(t, 42, res)
		})
	}
}

func TestRetryFuncNContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetryConfig()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	_, err := RetryFuncN(ctx, cfg, func() (int, error) {
		return 0, errTransient
	})
	require.ErrorIs(t, err, context.Canceled)
}
