package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentshim/core"
)

func newRedisRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRegistry(NewRedisStore(client)), mr
}

func TestRedisStore_RegisterDiscoverUnregister(t *testing.T) {
	ctx := context.Background()
	reg, mr := newRedisRegistry(t)

	for _, id := range []core.Identity{
		core.MustIdentity("a", "k"),
		core.MustIdentity("b"),
		core.MustIdentity("c", "k"),
	} {
		_, err := reg.Register(ctx, id, core.StateReady)
		require.NoError(t, err)
	}

	ids, err := reg.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.True(t, mr.Exists("agents:a"))

	recs, err := reg.FindByCapability(ctx, "k")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].AgentID)
	assert.Equal(t, "c", recs[1].AgentID)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Unregister(ctx, id))
	}
	ids, err = reg.Discover(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, mr.Exists("agents:a"))
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	reg, mr := newRedisRegistry(t)

	_, err := reg.Register(ctx, core.MustIdentity("a"), core.StateReady)
	require.NoError(t, err)

	ttl, err := reg.TTL(ctx, "a")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, TTL)

	mr.FastForward(TTL + time.Second)

	rec, err := reg.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = reg.TTL(ctx, "a")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
}

func TestRedisStore_GetMissing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)

	_, err := store.Get(context.Background(), "agents:none")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
	assert.NoError(t, store.Del(context.Background(), "agents:none"))
	assert.NoError(t, store.SRem(context.Background(), AllAgentsKey, "none"))
	assert.NoError(t, store.Close())
}
