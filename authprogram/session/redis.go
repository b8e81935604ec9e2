package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type (
	redisCache struct {
		rdb redis.UniversalClient
	}
)

// DialRedis connects to the redis server described by url, for example
// redis://127.0.0.1:6379/0?dial_timeout=2s&read_timeout=1s. Timeouts are
// left to the client options.
func DialRedis(ctx context.Context, url string) (Cache, func() error, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url, cause %w", err)
	}
	rdb := redis.NewClient(opts)
	return NewRedis(rdb), rdb.Close, nil
}

// NewRedis uses an existing redis client as the session cache.
func NewRedis(rdb redis.UniversalClient) Cache {
	return &redisCache{rdb: rdb}
}

func (r *redisCache) PutSession(ctx context.Context, key, body string, ttl time.Duration) error {
	err := r.rdb.Set(ctx, SessionKey(key), body, ttl).Err()
	if err != nil {
		return NewUnreachable("put session", err)
	}
	return nil
}

func (r *redisCache) GetSession(ctx context.Context, key string) (string, bool, error) {
	body, err := r.rdb.Get(ctx, SessionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, NewUnreachable("get session", err)
	}
	return body, true, nil
}

func (r *redisCache) DeleteSession(ctx context.Context, key string) error {
	err := r.rdb.Del(ctx, SessionKey(key)).Err()
	if err != nil {
		return NewUnreachable("delete session", err)
	}
	return nil
}

func (r *redisCache) RepoSet(ctx context.Context, uid string) ([]string, bool, error) {
	repos, err := r.rdb.SMembers(ctx, RepoSetKey(uid)).Result()
	if err != nil {
		return nil, false, NewUnreachable("get repo set", err)
	}
	// redis does not keep empty sets, so an empty reply is a miss
	return repos, len(repos) > 0, nil
}

func (r *redisCache) PutRepoSet(ctx context.Context, uid string, repos []string) error {
	if len(repos) == 0 {
		return nil
	}
	members := make([]interface{}, len(repos))
	for i, v := range repos {
		members[i] = v
	}
	err := r.rdb.SAdd(ctx, RepoSetKey(uid), members...).Err()
	if err != nil {
		return NewUnreachable("put repo set", err)
	}
	return nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	err := r.rdb.Ping(ctx).Err()
	if err != nil {
		return NewUnreachable("ping", err)
	}
	return nil
}
