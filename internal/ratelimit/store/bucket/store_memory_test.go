package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/ratelimit/models"
	"eventreg/pkg/requestcontext"
)

var base = time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), base.Add(d))
}

func TestInMemoryBucketStore_Allow(t *testing.T) {
	store := NewInMemoryBucketStore()
	limit := models.Limit{Requests: 2, Window: time.Minute}

	first, err := store.Allow(at(0), "k", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, base.Add(time.Minute), first.ResetAt)

	second, err := store.Allow(at(10*time.Second), "k", limit)
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third, err := store.Allow(at(20*time.Second), "k", limit)
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, 40, third.RetryAfter)

	other, err := store.Allow(at(20*time.Second), "other", limit)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are counted separately")
}

func TestInMemoryBucketStore_WindowSlides(t *testing.T) {
	store := NewInMemoryBucketStore()
	limit := models.Limit{Requests: 1, Window: time.Minute}

	_, err := store.Allow(at(0), "k", limit)
	require.NoError(t, err)

	blocked, err := store.Allow(at(59*time.Second), "k", limit)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	again, err := store.Allow(at(time.Minute), "k", limit)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestInMemoryBucketStore_Reset(t *testing.T) {
	store := NewInMemoryBucketStore()
	limit := models.Limit{Requests: 1, Window: time.Minute}

	_, _ = store.Allow(at(0), "k", limit)
	require.NoError(t, store.Reset(at(0), "k"))

	result, err := store.Allow(at(time.Second), "k", limit)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	assert.Equal(t, 1, retryAfter(base, base))
	assert.Equal(t, 2, retryAfter(base, base.Add(1500*time.Millisecond)))
}
