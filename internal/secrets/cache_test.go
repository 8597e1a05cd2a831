package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheServesWithinTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	fetches := 0
	cache := NewCache(func(context.Context) (string, error) {
		fetches++
		return "tok-1", nil
	}, time.Minute, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		v, err := cache.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", v)
	}
	assert.Equal(t, 1, fetches)
}

func TestCacheRefreshesAfterTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	values := []string{"tok-1", "tok-2"}
	fetches := 0
	cache := NewCache(func(context.Context) (string, error) {
		v := values[fetches]
		fetches++
		return v, nil
	}, time.Minute, func() time.Time { return now })

	v, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", v)

	now = now.Add(2 * time.Minute)
	v, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v)
	assert.Equal(t, 2, fetches)
}

func TestCacheServesStaleOnRefreshFailure(t *testing.T) {
	now := time.Unix(1000, 0)
	fetches := 0
	cache := NewCache(func(context.Context) (string, error) {
		fetches++
		if fetches > 1 {
			return "", errors.New("secret source down")
		}
		return "tok-1", nil
	}, time.Minute, func() time.Time { return now })

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	v, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", v)
}

func TestCacheFailsWhenNeverFetched(t *testing.T) {
	cache := NewCache(func(context.Context) (string, error) {
		return "", errors.New("secret source down")
	}, time.Minute, nil)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
}
