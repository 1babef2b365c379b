package fraud

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBlocklist(t *testing.T) (*RedisBlocklist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBlocklist(client), mr
}

func TestStaticBlocklist(t *testing.T) {
	ctx := context.Background()
	bl := NewStaticBlocklist("XX", "YY")

	locs, err := bl.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"XX", "YY"}, locs.Sorted())

	require.NoError(t, bl.Add(ctx, "ZZ"))
	require.NoError(t, bl.Remove(ctx, "XX"))

	locs, err = bl.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"YY", "ZZ"}, locs.Sorted())

	ok, err := bl.Contains(ctx, "ZZ")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = bl.Contains(ctx, "XX")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticBlocklist_SnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	bl := NewStaticBlocklist("XX")

	snap, err := bl.Locations(ctx)
	require.NoError(t, err)
	snap["injected"] = struct{}{}

	again, err := bl.Locations(ctx)
	require.NoError(t, err)
	assert.False(t, again.Contains("injected"))
}

func TestRedisBlocklist_AddRemove(t *testing.T) {
	ctx := context.Background()
	bl, mr := newRedisBlocklist(t)

	require.NoError(t, bl.Add(ctx, "HighRiskLocation"))
	require.NoError(t, bl.Add(ctx, "XX"))

	ok, err := bl.Contains(ctx, "HighRiskLocation")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := mr.Members(DefaultBlocklistKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"HighRiskLocation", "XX"}, members)

	require.NoError(t, bl.Remove(ctx, "XX"))
	locs, err := bl.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HighRiskLocation"}, locs.Sorted())
}

func TestRedisBlocklist_EmptyKey(t *testing.T) {
	bl, _ := newRedisBlocklist(t)
	locs, err := bl.Locations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestRedisBlocklist_WithKey(t *testing.T) {
	ctx := context.Background()
	bl, mr := newRedisBlocklist(t)
	bl.WithKey("tenant-a:blocked")

	require.NoError(t, bl.Add(ctx, "XX"))
	assert.True(t, mr.Exists("tenant-a:blocked"))
	assert.False(t, mr.Exists(DefaultBlocklistKey))
}

func TestRedisBlocklist_Unavailable(t *testing.T) {
	bl, mr := newRedisBlocklist(t)
	mr.Close()

	_, err := bl.Locations(context.Background())
	assert.ErrorContains(t, err, "failed to load blocked locations")
}

func TestLocations_NilSetIsEmpty(t *testing.T) {
	var l Locations
	assert.False(t, l.Contains("XX"))
	assert.Empty(t, l.Sorted())
}
