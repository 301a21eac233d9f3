package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := NewWithConfig(Config{RequestsPerSecond: 1.0, BurstSize: 3})

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiter_BackoffBlocksAllow(t *testing.T) {
	l := NewWithConfig(Config{RequestsPerSecond: 100.0, BurstSize: 10})

	l.RecordRateLimitError(2)
	assert.False(t, l.Allow())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewWithConfig(Config{RequestsPerSecond: 100.0, BurstSize: 10})
	l.RecordRateLimitError(60)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_UnknownProviderFallsBack(t *testing.T) {
	l := New("something-else")
	require.NotNil(t, l)
	assert.True(t, l.Allow())
}
