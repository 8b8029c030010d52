package prefs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "dicebot:test:systems"

func newTestRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRepository(rdb, testKey), mr
}

func TestRedisRepository_LoadMissingKey(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	systems, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, systems)
}

func TestRedisRepository_SaveReplacesHash(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRedisRepo(t)

	require.NoError(t, repo.Save(ctx, map[string]string{"u1": "DX3", "u2": "Cthulhu"}))
	require.NoError(t, repo.Save(ctx, map[string]string{"u2": "Cthulhu7th"}))

	systems, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u2": "Cthulhu7th"}, systems)
	keys, err := mr.HKeys(testKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, keys)
}

func TestRedisRepository_SaveEmptyClearsHash(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRedisRepo(t)

	require.NoError(t, repo.Save(ctx, map[string]string{"u1": "DX3"}))
	require.NoError(t, repo.Save(ctx, map[string]string{}))

	systems, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{}, systems)
	assert.False(t, mr.Exists(testKey))
}

func TestRedisRepository_ServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRedisRepo(t)

	svc := NewService(repo)
	require.NoError(t, svc.Load(ctx))
	require.NoError(t, svc.Set(ctx, "u1", "SwordWorld2.5"))
	require.NoError(t, svc.Set(ctx, "u2", "DX3"))
	require.NoError(t, svc.Reset(ctx, "u2"))

	reloaded := NewService(repo)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "SwordWorld2.5", reloaded.SystemFor("u1"))
	assert.Equal(t, DefaultSystem, reloaded.SystemFor("u2"))
}
