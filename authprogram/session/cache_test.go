package session_test

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrebq/cgitauth/authprogram/session"
	"github.com/andrebq/cgitauth/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestStoreAndCheck(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	cache := testutil.NewMemoryCache(t, clock)

	tk, err := session.Mint(rand.Reader, "alice")
	require.NoError(t, err)
	ok, err := session.Check(ctx, cache, tk)
	require.NoError(t, err)
	require.False(t, ok, "absent sessions are never valid")

	require.NoError(t, session.Store(ctx, cache, tk, time.Minute))
	ok, err = session.Check(ctx, cache, tk)
	require.NoError(t, err)
	require.True(t, ok)

	forged := tk
	forged.Body = tk.Key
	ok, err = session.Check(ctx, cache, forged)
	require.NoError(t, err)
	require.False(t, ok, "a valid key with the wrong body is rejected")

	clock.Advance(time.Minute)
	ok, err = session.Check(ctx, cache, tk)
	require.NoError(t, err)
	require.False(t, ok, "expired sessions are rejected")

	require.Error(t, session.Store(ctx, cache, tk, 0))
}

func TestCheckUnreachable(t *testing.T) {
	ctx := context.Background()
	cache := testutil.NewMemoryCache(t, nil)
	tk, err := session.Mint(rand.Reader, "alice")
	require.NoError(t, err)
	require.NoError(t, session.Store(ctx, cache, tk, time.Minute))

	cache.SetDown(true)
	ok, err := session.Check(ctx, cache, tk)
	require.False(t, ok)
	var unreachable session.Unreachable
	require.True(t, errors.As(err, &unreachable), "got %v", err)
	require.Equal(t, "get session", unreachable.Op)
}

func TestRepoSets(t *testing.T) {
	ctx := context.Background()
	cache := testutil.NewMemoryCache(t, nil)
	sets := session.NewRepoSets(cache)

	var calls int32
	load := func(ctx context.Context, uid string) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"linux", "cgit"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repos, err := sets.GetOrPopulate(ctx, "uid-1", load)
			if err != nil {
				t.Error(err)
				return
			}
			if len(repos) != 2 {
				t.Errorf("unexpected repos %v", repos)
			}
		}()
	}
	wg.Wait()

	repos, found, err := cache.RepoSet(ctx, "uid-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"linux", "cgit"}, repos)

	before := atomic.LoadInt32(&calls)
	_, err = sets.GetOrPopulate(ctx, "uid-1", load)
	require.NoError(t, err)
	require.Equal(t, before, atomic.LoadInt32(&calls), "cached sets should not be loaded again")

	loadErr := errors.New("store is gone")
	_, err = sets.GetOrPopulate(ctx, "uid-2", func(context.Context, string) ([]string, error) {
		return nil, loadErr
	})
	require.ErrorIs(t, err, loadErr)
}
