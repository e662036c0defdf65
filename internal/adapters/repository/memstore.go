package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/metrics"
)

const defaultShardCount = 16

// slot addresses a result inside its group.
type slot struct {
	boulderID int64
	climberID int64
}

type shard struct {
	mu     sync.RWMutex
	groups map[int64]map[slot]model.Result
}

// MemoryStore keeps results in memory. A group always lives on one shard so a
// batch on a group only takes one lock.
type MemoryStore struct {
	shardCount int
	shards     []*shard
	count      atomic.Int64
	closed     atomic.Bool
}

// NewMemoryStore constructs an in-memory store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{groups: make(map[int64]map[slot]model.Result)}
	}
	metrics.UpdateRepositoryShardCount(s.shardCount)
	return s
}

func (s *MemoryStore) shardFor(groupID int64) *shard {
	return s.shards[uint64(groupID)%uint64(len(s.shards))]
}

func slotOf(k model.ResultKey) slot {
	return slot{boulderID: k.BoulderID, climberID: k.ClimberID}
}

// Mutate implements Store.Mutate.
func (s *MemoryStore) Mutate(ctx context.Context, key model.ResultKey, fn MutateFunc) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if s.closed.Load() {
		return model.Result{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}

	sh := s.shardFor(key.GroupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	results := sh.groups[key.GroupID]
	cur, existed := results[slotOf(key)]
	if !existed {
		cur = model.Result{ResultKey: key}
	}
	next, err := fn(cur, existed)
	if err != nil {
		return cur, err
	}
	next.ResultKey = key
	if results == nil {
		results = make(map[slot]model.Result)
		sh.groups[key.GroupID] = results
	}
	results[slotOf(key)] = next
	if !existed {
		metrics.UpdateRepositoryResultsTotal(int(s.count.Add(1)))
	}
	return next, nil
}

// MutateBatch implements Store.MutateBatch. Mutations are staged and only
// applied once all of them succeeded.
func (s *MemoryStore) MutateBatch(ctx context.Context, groupID int64, muts []Mutation) ([]model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, m := range muts {
		if m.Key.GroupID != groupID {
			return nil, ErrInvalidBatch
		}
	}

	sh := s.shardFor(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	results := sh.groups[groupID]
	staged := make(map[slot]model.Result, len(muts))
	out := make([]model.Result, 0, len(muts))
	for i, m := range muts {
		sl := slotOf(m.Key)
		cur, existed := staged[sl]
		if !existed {
			cur, existed = results[sl]
		}
		if !existed {
			cur = model.Result{ResultKey: m.Key}
		}
		next, err := m.Fn(cur, existed)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		next.ResultKey = m.Key
		staged[sl] = next
		out = append(out, next)
	}

	if results == nil {
		results = make(map[slot]model.Result, len(staged))
		sh.groups[groupID] = results
	}
	added := 0
	for sl, r := range staged {
		if _, ok := results[sl]; !ok {
			added++
		}
		results[sl] = r
	}
	if added > 0 {
		metrics.UpdateRepositoryResultsTotal(int(s.count.Add(int64(added))))
	}
	return out, nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key model.ResultKey) (model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sh := s.shardFor(key.GroupID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	r, ok := sh.groups[key.GroupID][slotOf(key)]
	if !ok {
		return model.Result{}, ErrNotFound
	}
	return r, nil
}

// ListByGroup implements Store.ListByGroup.
func (s *MemoryStore) ListByGroup(_ context.Context, groupID int64) ([]model.Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sh := s.shardFor(groupID)
	sh.mu.RLock()
	out := make([]model.Result, 0, len(sh.groups[groupID]))
	for _, r := range sh.groups[groupID] {
		out = append(out, r)
	}
	sh.mu.RUnlock()

	sortResults(out)
	return out, nil
}

func sortResults(rs []model.Result) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].ClimberID != rs[j].ClimberID {
			return rs[i].ClimberID < rs[j].ClimberID
		}
		return rs[i].BoulderID < rs[j].BoulderID
	})
}

// DeleteBoulder implements Store.DeleteBoulder.
func (s *MemoryStore) DeleteBoulder(_ context.Context, groupID, boulderID int64) (int, error) {
	return s.deleteWhere(groupID, func(sl slot) bool { return sl.boulderID == boulderID })
}

// DeleteClimber implements Store.DeleteClimber.
func (s *MemoryStore) DeleteClimber(_ context.Context, groupID, climberID int64) (int, error) {
	return s.deleteWhere(groupID, func(sl slot) bool { return sl.climberID == climberID })
}

func (s *MemoryStore) deleteWhere(groupID int64, match func(slot) bool) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	sh := s.shardFor(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	n := 0
	for sl := range sh.groups[groupID] {
		if match(sl) {
			delete(sh.groups[groupID], sl)
			n++
		}
	}
	if n > 0 {
		metrics.UpdateRepositoryResultsTotal(int(s.count.Add(int64(-n))))
	}
	return n, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(context.Context) (int, error) {
	return int(s.count.Load()), nil
}

// Close marks the store closed; later writes fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}
