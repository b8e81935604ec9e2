package testutil

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/andrebq/cgitauth/authprogram/session"
	"github.com/cespare/xxhash/v2"
)

type (
	// Clock is a manually advanced clock, used to expire cache entries
	// without waiting.
	Clock struct {
		sync.Mutex
		now time.Time
	}

	// MemoryCache is a session.Cache kept in process memory. Each entry
	// carries its own deadline which is checked against Clock.
	MemoryCache struct {
		cache *bigcache.BigCache
		clock *Clock
		down  atomic.Bool
	}

	xxhasher struct{}
)

var (
	errCacheDown = errors.New("connection refused")
)

func NewClock() *Clock {
	return &Clock{now: time.Unix(1700000000, 0)}
}

func (c *Clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.Lock()
	c.now = c.now.Add(d)
	c.Unlock()
}

func (xxhasher) Sum64(key string) uint64 {
	return xxhash.Sum64String(key)
}

func NewMemoryCache(t TestLog, clock *Clock) *MemoryCache {
	if clock == nil {
		clock = NewClock()
	}
	cfg := bigcache.DefaultConfig(24 * time.Hour)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 256
	cfg.CleanWindow = 0
	cfg.Hasher = xxhasher{}
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &MemoryCache{cache: cache, clock: clock}
}

// SetDown makes every call fail as if the cache could not be reached.
func (m *MemoryCache) SetDown(down bool) {
	m.down.Store(down)
}

func (m *MemoryCache) PutSession(ctx context.Context, key, body string, ttl time.Duration) error {
	if m.down.Load() {
		return session.NewUnreachable("put session", errCacheDown)
	}
	return m.set(session.SessionKey(key), body, m.clock.Now().Add(ttl))
}

func (m *MemoryCache) GetSession(ctx context.Context, key string) (string, bool, error) {
	if m.down.Load() {
		return "", false, session.NewUnreachable("get session", errCacheDown)
	}
	return m.get(session.SessionKey(key))
}

func (m *MemoryCache) DeleteSession(ctx context.Context, key string) error {
	if m.down.Load() {
		return session.NewUnreachable("delete session", errCacheDown)
	}
	err := m.cache.Delete(session.SessionKey(key))
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (m *MemoryCache) RepoSet(ctx context.Context, uid string) ([]string, bool, error) {
	if m.down.Load() {
		return nil, false, session.NewUnreachable("get repo set", errCacheDown)
	}
	val, found, err := m.get(session.RepoSetKey(uid))
	if !found || err != nil {
		return nil, found, err
	}
	return strings.Split(val, "\n"), true, nil
}

func (m *MemoryCache) PutRepoSet(ctx context.Context, uid string, repos []string) error {
	if m.down.Load() {
		return session.NewUnreachable("put repo set", errCacheDown)
	}
	if len(repos) == 0 {
		return nil
	}
	return m.set(session.RepoSetKey(uid), strings.Join(repos, "\n"), time.Time{})
}

func (m *MemoryCache) Ping(ctx context.Context) error {
	if m.down.Load() {
		return session.NewUnreachable("ping", errCacheDown)
	}
	return nil
}

// HasSession reports whether key has a live entry, regardless of its body.
func (m *MemoryCache) HasSession(key string) bool {
	_, found, _ := m.get(session.SessionKey(key))
	return found
}

func (m *MemoryCache) set(key, val string, deadline time.Time) error {
	buf := make([]byte, 8+len(val))
	if !deadline.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(deadline.UnixNano()))
	}
	copy(buf[8:], val)
	return m.cache.Set(key, buf)
}

func (m *MemoryCache) get(key string) (string, bool, error) {
	buf, err := m.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	if len(buf) < 8 {
		return "", false, nil
	}
	deadline := int64(binary.BigEndian.Uint64(buf))
	if deadline != 0 && !m.clock.Now().Before(time.Unix(0, deadline)) {
		m.cache.Delete(key)
		return "", false, nil
	}
	return string(buf[8:]), true, nil
}
