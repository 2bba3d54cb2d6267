package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apartment-estimator/backend/internal/estimation"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newClient(rdb, time.Minute)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestEstimatesRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetEstimates(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := &estimation.Estimates{
		Buy:  estimation.Result{Point: 300000, Lower: 250000, Upper: 360000},
		Rent: estimation.Result{Point: 1000, Lower: 900, Upper: 1100},
	}
	require.NoError(t, c.SetEstimates(ctx, "k1", want))
	assert.True(t, mr.Exists("estimate:k1"))
	assert.Equal(t, time.Minute, mr.TTL("estimate:k1"))

	got, ok, err := c.GetEstimates(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestInvalidateOnlyDropsEstimates(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetEstimates(ctx, "a", &estimation.Estimates{}))
	require.NoError(t, c.SetEstimates(ctx, "b", &estimation.Estimates{}))
	require.NoError(t, mr.Set("other", "x"))

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("other"))
	assert.False(t, mr.Exists("estimate:a"))
}

func TestUnavailableServerReturnsError(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	_, _, err := c.GetEstimates(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, c.SetEstimates(context.Background(), "k", &estimation.Estimates{}))
}
