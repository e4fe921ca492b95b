package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(&goredis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.NoError(t, client.Ping(ctx))
}

func TestNilClientIsSafe(t *testing.T) {
	var client *Client
	ctx := context.Background()
	assert.Error(t, client.Set(ctx, "k", "v", 0))
	_, err := client.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, client.Ping(ctx))
	assert.NoError(t, client.Close())
	assert.Nil(t, client.Raw())
}

func TestConnectFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(&goredis.Options{Addr: addr})
	require.Error(t, err)
}
