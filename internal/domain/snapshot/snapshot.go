// Package snapshot caches computed rankings per scope.
//
// Two views are kept for each scope: the current ranking, dropped on every
// write and rebuilt lazily, and the published ranking that the next diff is
// computed against. Neither is authoritative; both can be rebuilt from the
// stored results.
package snapshot

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/metrics"
)

// Builder computes the ranking of a scope from the stored results.
type Builder func(ctx context.Context, scope model.Scope) (types.Rankings, error)

// Published is the last ranking sent to subscribers of a scope.
type Published struct {
	Version  uint64
	Rankings types.Rankings
}

type current struct {
	gen      uint64
	rankings types.Rankings
}

// Cache is safe for concurrent use.
type Cache struct {
	build Builder
	group singleflight.Group

	mu        sync.RWMutex
	gens      map[model.Scope]uint64
	current   map[model.Scope]current
	published map[model.Scope]Published
	versions  map[model.Scope]uint64
}

// New returns an empty cache that rebuilds rankings with build.
func New(build Builder) *Cache {
	return &Cache{
		build:     build,
		gens:      make(map[model.Scope]uint64),
		current:   make(map[model.Scope]current),
		published: make(map[model.Scope]Published),
		versions:  make(map[model.Scope]uint64),
	}
}

// Invalidate drops the current ranking of the scopes. In-flight rebuilds that
// started before the call will not be cached.
func (c *Cache) Invalidate(scopes ...model.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scopes {
		c.gens[s]++
		delete(c.current, s)
	}
}

// Current returns the up to date ranking of scope, rebuilding it when needed.
// Concurrent callers for the same scope share one rebuild.
func (c *Cache) Current(ctx context.Context, scope model.Scope) (types.Rankings, error) {
	c.mu.RLock()
	cur, ok := c.current[scope]
	gen := c.gens[scope]
	c.mu.RUnlock()
	if ok && cur.gen == gen {
		metrics.RecordSnapshotHit()
		return cur.rankings, nil
	}

	// keyed by generation so a read after a write never joins an older rebuild
	key := scope.String() + "@" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		rk, err := c.build(ctx, scope)
		if err != nil {
			return types.Rankings{}, err
		}
		metrics.RecordSnapshotRebuild()

		c.mu.Lock()
		if c.gens[scope] == gen {
			c.current[scope] = current{gen: gen, rankings: rk}
		}
		c.mu.Unlock()
		return rk, nil
	})
	if err != nil {
		return types.Rankings{}, err
	}
	return v.(types.Rankings), nil
}

// Published returns the last committed ranking of scope.
func (c *Cache) Published(scope model.Scope) (Published, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.published[scope]
	return p, ok
}

// NextVersion reserves the next version number of scope.
func (c *Cache) NextVersion(scope model.Scope) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[scope]++
	return c.versions[scope]
}

// Commit makes rankings the published ranking of scope. It reports false and
// changes nothing when a version at least as new is already published.
func (c *Cache) Commit(scope model.Scope, version uint64, rankings types.Rankings) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.published[scope]; ok && p.Version >= version {
		metrics.RecordStaleDrop("commit")
		return false
	}
	c.published[scope] = Published{Version: version, Rankings: rankings}
	return true
}
