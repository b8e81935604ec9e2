// Package session holds the server side half of every issued token and a
// denormalized copy of each account's repository set.
package session

import (
	"context"
	"fmt"
	"time"
)

type (
	// Cache is the contract every session cache backend implements.
	// Absence is reported with found == false and a nil error; errors are
	// always transport failures wrapped in Unreachable.
	Cache interface {
		PutSession(ctx context.Context, key, body string, ttl time.Duration) error
		GetSession(ctx context.Context, key string) (body string, found bool, err error)
		DeleteSession(ctx context.Context, key string) error

		// RepoSet returns the cached repositories of uid, found is false
		// when nothing was cached yet.
		RepoSet(ctx context.Context, uid string) (repos []string, found bool, err error)
		// PutRepoSet caches repos for uid without expiration.
		PutRepoSet(ctx context.Context, uid string, repos []string) error

		Ping(ctx context.Context) error
	}
)

func SessionKey(key string) string {
	return fmt.Sprintf("session:%s", key)
}

func RepoSetKey(uid string) string {
	return fmt.Sprintf("repos:%s", uid)
}

// Store saves the body of t with the given ttl.
func Store(ctx context.Context, c Cache, t Token, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive, got %v", ttl)
	}
	return c.PutSession(ctx, t.Key, t.Body, ttl)
}

// Check reports whether t matches the body cached under its key. A missing
// entry is not an error.
func Check(ctx context.Context, c Cache, t Token) (bool, error) {
	body, found, err := c.GetSession(ctx, t.Key)
	if err != nil || !found {
		return false, err
	}
	return t.Matches(body), nil
}
