package session

import (
	"context"
	"crypto/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const redisEnvVar = "CGIT_AUTH_TEST_REDIS"

func acquireRedis(t *testing.T) Cache {
	url := os.Getenv(redisEnvVar)
	if url == "" {
		t.Skipf("%v is not set, skipping redis tests", redisEnvVar)
	}
	cache, closer, err := DialRedis(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { closer() })
	require.NoError(t, cache.Ping(context.Background()))
	return cache
}

func TestRedisSessions(t *testing.T) {
	cache := acquireRedis(t)
	ctx := context.Background()
	tk, err := Mint(rand.Reader, "alice")
	require.NoError(t, err)

	require.NoError(t, Store(ctx, cache, tk, time.Second))
	ok, err := Check(ctx, cache, tk)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cache.DeleteSession(ctx, tk.Key))
	ok, err = Check(ctx, cache, tk)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRepoSets(t *testing.T) {
	cache := acquireRedis(t)
	ctx := context.Background()
	tk, err := Mint(rand.Reader, "uid")
	require.NoError(t, err)
	uid := tk.Key

	_, found, err := cache.RepoSet(ctx, uid)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.PutRepoSet(ctx, uid, []string{"a", "b"}))
	repos, found, err := cache.RepoSet(ctx, uid)
	require.NoError(t, err)
	require.True(t, found)
	require.ElementsMatch(t, []string{"a", "b"}, repos)
}

func TestDialRedisBadURL(t *testing.T) {
	_, _, err := DialRedis(context.Background(), "http://not-redis")
	require.Error(t, err)
}
