package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) Cache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string  `json:"name"`
		Spend float64 `json:"spend"`
	}

	require.NoError(t, c.Set(ctx, "metrics:aud-1:7", payload{Name: "broad-in", Spend: 4200}, time.Minute))

	var got payload
	found, err := c.Get(ctx, "metrics:aud-1:7", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "broad-in", got.Name)
	assert.Equal(t, 4200.0, got.Spend)
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	var got map[string]string
	found, err := c.Get(context.Background(), "metrics:nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidatePrefix(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "audiences:acct-1", []string{"a"}, time.Minute))
	require.NoError(t, c.Set(ctx, "audiences:acct-2", []string{"b"}, time.Minute))
	require.NoError(t, c.Set(ctx, "benchmarks:acct-1", []string{"c"}, time.Minute))

	n, err := c.InvalidatePrefix(ctx, PrefixAudiences)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var got []string
	found, _ := c.Get(ctx, "audiences:acct-1", &got)
	assert.False(t, found)

	found, _ = c.Get(ctx, "benchmarks:acct-1", &got)
	assert.True(t, found, "other prefixes must survive")
}

func TestNoopCache(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	var got string
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	n, err := c.InvalidatePrefix(ctx, PrefixMetrics)
	require.NoError(t, err)
	assert.Zero(t, n)
}
