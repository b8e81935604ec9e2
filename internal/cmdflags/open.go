package cmdflags

import (
	"context"

	"github.com/andrebq/cgitauth/authprogram/session"
	"github.com/andrebq/cgitauth/credstore"
)

// OpenCache dials the session cache.
func (c *Config) OpenCache(ctx context.Context) (session.Cache, func() error, error) {
	return session.DialRedis(ctx, c.RedisURL)
}

// OpenReader opens the store for login lookups. With a snapshot dir the
// live file is copied first so readers never hold a lock on it.
func (c *Config) OpenReader(ctx context.Context) (*credstore.Store, func() error, error) {
	if c.SnapshotDir != "" {
		return credstore.OpenSnapshot(ctx, c.Database, c.SnapshotDir)
	}
	s, err := credstore.Open(ctx, c.Database, false)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// OpenWriter opens the store for administrative changes.
func (c *Config) OpenWriter(ctx context.Context) (*credstore.Store, error) {
	return credstore.Open(ctx, c.Database, true)
}
