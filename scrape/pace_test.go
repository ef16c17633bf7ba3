package scrape_test

import (
	"context"
	"testing"
	"time"

	"github.com/bkuiper/adwatch/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalPacer_Allow(t *testing.T) {
	t.Parallel()

	t.Run("first request passes immediately", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(time.Minute, 0, 0)

		retryAfter, ok := p.Allow()

		assert.True(t, ok)
		assert.Zero(t, retryAfter)
	})

	t.Run("a request inside the interval is refused with a wait hint", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(time.Minute, 0, 0)

		_, ok := p.Allow()
		require.True(t, ok)

		retryAfter, ok := p.Allow()

		assert.False(t, ok)
		assert.Greater(t, retryAfter, time.Duration(0))
		assert.LessOrEqual(t, retryAfter, time.Minute)
	})

	t.Run("a refused request does not consume the slot", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(50*time.Millisecond, 0, 0)

		_, ok := p.Allow()
		require.True(t, ok)
		_, ok = p.Allow()
		require.False(t, ok)

		time.Sleep(60 * time.Millisecond)

		_, ok = p.Allow()
		assert.True(t, ok)
	})

	t.Run("zero interval never refuses", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(0, 0, 0)

		for range 5 {
			retryAfter, ok := p.Allow()
			assert.True(t, ok)
			assert.Zero(t, retryAfter)
		}
	})
}

func TestIntervalPacer_Jitter(t *testing.T) {
	t.Parallel()

	t.Run("empty range returns immediately", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(time.Minute, 0, 0)

		start := time.Now()
		err := p.Jitter(context.Background())

		require.NoError(t, err)
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("sleeps within the configured range", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(time.Minute, 10*time.Millisecond, 30*time.Millisecond)

		start := time.Now()
		err := p.Jitter(context.Background())

		require.NoError(t, err)
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
		assert.Less(t, elapsed, 5*time.Second)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		t.Parallel()

		p := scrape.NewIntervalPacer(time.Minute, time.Hour, 2*time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Jitter(ctx)
		assert.Error(t, err)
	})
}
