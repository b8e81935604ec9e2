package session

import (
	"context"

	"golang.org/x/sync/singleflight"
)

type (
	// Loader reads the repository set of an account from the credential store.
	Loader func(ctx context.Context, uid string) ([]string, error)

	// RepoSets fills the cached repository sets on first access. Concurrent
	// fills for one uid inside a process are collapsed, fills from
	// different processes may race but write the same data.
	RepoSets struct {
		cache Cache
		group singleflight.Group
	}
)

func NewRepoSets(c Cache) *RepoSets {
	return &RepoSets{cache: c}
}

// GetOrPopulate returns the cached set for uid, calling load and caching
// its result when nothing is cached. Cached sets never expire.
func (r *RepoSets) GetOrPopulate(ctx context.Context, uid string, load Loader) ([]string, error) {
	repos, found, err := r.cache.RepoSet(ctx, uid)
	if err != nil {
		return nil, err
	} else if found {
		return repos, nil
	}
	v, err, _ := r.group.Do(uid, func() (interface{}, error) {
		repos, err := load(ctx, uid)
		if err != nil {
			return nil, err
		}
		err = r.cache.PutRepoSet(ctx, uid, repos)
		if err != nil {
			return nil, err
		}
		return repos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
