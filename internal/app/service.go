// Package service wires the judging and ranking pipeline and implements the
// dependencies required by the HTTP and websocket adapters.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/crux/internal/adapters/catalog"
	"github.com/okian/crux/internal/adapters/mq/queue"
	"github.com/okian/crux/internal/adapters/mq/worker"
	"github.com/okian/crux/internal/adapters/publisher"
	"github.com/okian/crux/internal/adapters/repository"
	"github.com/okian/crux/internal/domain/dedupe"
	"github.com/okian/crux/internal/domain/judging"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/ranking"
	"github.com/okian/crux/internal/domain/snapshot"
	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/logger"
	"github.com/okian/crux/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Catalog is the metadata the service judges and ranks against.
type Catalog interface {
	Competition(ctx context.Context, id int64) (model.Competition, error)
	Round(ctx context.Context, id int64) (model.Round, error)
	Group(ctx context.Context, id int64) (model.Group, error)
	SetGroupState(ctx context.Context, id int64, state model.GroupState) (model.Group, error)
	InsertBoulder(ctx context.Context, groupID int64, index int, b model.Boulder) (model.Group, error)
	RemoveBoulder(ctx context.Context, groupID, boulderID int64) (model.Group, error)
	RemoveClimber(ctx context.Context, groupID, climberID int64) (model.Group, error)
}

// Service judges results and keeps the rankings of every scope published.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	catalog   Catalog
	deduper   dedupe.Deduper
	inflight  singleflight.Group
	queue     *queue.Partitioned
	cache     *snapshot.Cache
	publisher publisher.Publisher
	pool      *worker.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	shardCount    int
	publishBuffer int
	tolerance     float64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   8,
		queueSize:     4096,
		dedupeSize:    50000,
		shardCount:    16,
		publishBuffer: 64,
		tolerance:     ranking.DefaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the missing components and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting ranking service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithShardCount(s.shardCount))
		s.logger.Info(ctx, "using memory store", logger.Int("shards", s.shardCount))
	}
	if s.catalog == nil {
		s.catalog = catalog.New()
		s.logger.Warn(ctx, "no catalog configured, starting empty")
	}
	if s.publisher == nil {
		s.publisher = publisher.New(publisher.WithBuffer(s.publishBuffer))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewPartitioned(
		queue.WithPartitions(s.workerCount),
		queue.WithCapacity(s.queueSize),
	)
	s.cache = snapshot.New(s.build)
	s.pool = worker.NewPool(s.queue, s.cache, s.publisher)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the recompute queue and closes the components.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping ranking service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Error(ctx, "publisher close", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "store close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// judgeTarget loads the group and round of a judging call and checks the
// group accepts results.
func (s *Service) judgeTarget(ctx context.Context, groupID int64) (model.Group, model.Round, error) {
	g, err := s.catalog.Group(ctx, groupID)
	if err != nil {
		return model.Group{}, model.Round{}, err
	}
	r, err := s.catalog.Round(ctx, g.RoundID)
	if err != nil {
		return model.Group{}, model.Round{}, err
	}
	if g.State != model.GroupOngoing {
		return model.Group{}, model.Round{}, fmt.Errorf("group %d is %s: %w", g.ID, g.State, model.ErrGroupNotOngoing)
	}
	return g, r, nil
}

func checkMembership(g *model.Group, climberID, boulderID int64) error {
	if !g.HasClimber(climberID) {
		return fmt.Errorf("climber %d, group %d: %w", climberID, g.ID, model.ErrClimberNotInGroup)
	}
	if _, ok := g.Boulder(boulderID); !ok {
		return fmt.Errorf("boulder %d, group %d: %w", boulderID, g.ID, model.ErrBoulderNotInGroup)
	}
	return nil
}

func requestKey(groupID int64, requestID string) string {
	if requestID == "" {
		return ""
	}
	return model.GroupScope(groupID).String() + "/" + requestID
}

var errSeen = errors.New("request already applied")

// once runs apply at most once per request id. Calls with the same id that
// arrive while apply runs wait for it and share its outcome. An id is
// recorded only when apply succeeds; later calls read current instead.
// duplicate is set for every call that did not run apply itself.
func once[T any](ctx context.Context, s *Service, id string, apply, current func() (T, error)) (v T, duplicate bool, err error) {
	if id == "" {
		v, err = apply()
		return v, false, err
	}
	leader := false
	shared, err, _ := s.inflight.Do(id, func() (any, error) {
		leader = true
		if s.deduper.Seen(ctx, id) {
			return nil, errSeen
		}
		v, err := apply()
		if err != nil {
			return nil, err
		}
		s.deduper.SeenAndRecord(ctx, id)
		return v, nil
	})
	switch {
	case errors.Is(err, errSeen):
		metrics.RecordDuplicateRequest()
		v, err = current()
		return v, true, err
	case err != nil:
		return v, false, err
	case !leader:
		metrics.RecordDuplicateRequest()
	}
	return shared.(T), !leader, nil
}

// Judge applies one judging call. A call whose request id was already seen
// for the group is not applied again: the stored result is returned with
// duplicate set.
func (s *Service) Judge(ctx context.Context, in model.JudgingInput) (res model.Result, duplicate bool, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordJudgingLatency(float64(time.Since(start).Microseconds()) / 1000)
		metrics.RecordJudging(outcome(err, duplicate))
	}()
	if err := s.running(); err != nil {
		return model.Result{}, false, err
	}
	if !in.HasField() {
		return model.Result{}, false, model.ErrNoJudgingField
	}

	g, r, err := s.judgeTarget(ctx, in.Key.GroupID)
	if err != nil {
		return model.Result{}, false, err
	}
	if err := checkMembership(&g, in.Key.ClimberID, in.Key.BoulderID); err != nil {
		return model.Result{}, false, err
	}

	rules := judging.Rules{Format: r.Format, MaxTries: r.MaxTries}
	res, duplicate, err = once(ctx, s, requestKey(g.ID, in.RequestID),
		func() (model.Result, error) {
			return s.store.Mutate(ctx, in.Key, func(cur model.Result, _ bool) (model.Result, error) {
				return judging.Apply(cur, rules, in)
			})
		},
		func() (model.Result, error) { return s.Result(ctx, in.Key) },
	)
	if err != nil {
		return model.Result{}, false, err
	}
	if duplicate {
		return res, true, nil
	}

	s.logger.Debug(ctx, "result judged",
		logger.Int64("group_id", in.Key.GroupID),
		logger.Int64("boulder_id", in.Key.BoulderID),
		logger.Int64("climber_id", in.Key.ClimberID),
		logger.Int("tries", res.Tries),
		logger.Bool("top", res.Top),
		logger.Bool("zone", res.Zone))
	s.changed(ctx, g, r)
	return res, false, nil
}

// BulkJudge applies absolute values to many results of a group. Either every
// entry is written or none is.
func (s *Service) BulkJudge(ctx context.Context, groupID int64, requestID string, entries []model.BulkEntry) (out []model.Result, duplicate bool, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordJudgingLatency(float64(time.Since(start).Microseconds()) / 1000)
		metrics.RecordJudging(outcome(err, duplicate))
	}()
	if err := s.running(); err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return nil, false, fmt.Errorf("empty bulk: %w", model.ErrNoJudgingField)
	}

	g, r, err := s.judgeTarget(ctx, groupID)
	if err != nil {
		return nil, false, err
	}
	for i, e := range entries {
		if err := checkMembership(&g, e.ClimberID, e.BoulderID); err != nil {
			return nil, false, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	rules := judging.Rules{Format: r.Format, MaxTries: r.MaxTries}
	muts := make([]repository.Mutation, len(entries))
	for i, e := range entries {
		muts[i] = repository.Mutation{
			Key: model.ResultKey{GroupID: groupID, BoulderID: e.BoulderID, ClimberID: e.ClimberID},
			Fn: func(cur model.Result, _ bool) (model.Result, error) {
				return judging.ApplyBulk(cur, rules, e)
			},
		}
	}
	out, duplicate, err = once(ctx, s, requestKey(g.ID, requestID),
		func() ([]model.Result, error) {
			out, err := s.store.MutateBatch(ctx, groupID, muts)
			var be *repository.BatchError
			if errors.As(err, &be) {
				return nil, fmt.Errorf("entry %d: %w", be.Index, be.Err)
			}
			return out, err
		},
		func() ([]model.Result, error) { return s.Results(ctx, groupID, 0, 0) },
	)
	if err != nil {
		return nil, false, err
	}
	if duplicate {
		return out, true, nil
	}

	metrics.RecordBulkEntries(len(entries))
	s.logger.Info(ctx, "bulk results applied",
		logger.Int64("group_id", groupID), logger.Int("entries", len(entries)))
	s.changed(ctx, g, r)
	return out, false, nil
}

// Result returns the result of a climber on a boulder. A result never written
// is returned with its zero values as long as the climber and boulder belong
// to the group.
func (s *Service) Result(ctx context.Context, key model.ResultKey) (model.Result, error) {
	if err := s.running(); err != nil {
		return model.Result{}, err
	}
	res, err := s.store.Get(ctx, key)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Result{}, err
	}
	g, gerr := s.catalog.Group(ctx, key.GroupID)
	if gerr != nil {
		return model.Result{}, gerr
	}
	if err := checkMembership(&g, key.ClimberID, key.BoulderID); err != nil {
		return model.Result{}, err
	}
	return model.Result{ResultKey: key}, nil
}

// Results lists the stored results of a group. Non-zero climberID or
// boulderID narrow the list.
func (s *Service) Results(ctx context.Context, groupID, climberID, boulderID int64) ([]model.Result, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Group(ctx, groupID); err != nil {
		return nil, err
	}
	all, err := s.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if (climberID == 0 || r.ClimberID == climberID) && (boulderID == 0 || r.BoulderID == boulderID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rankings returns the up to date ranking of a scope together with the last
// published version. A known format other than the scope's is rejected.
func (s *Service) Rankings(ctx context.Context, scope model.Scope, format model.Format) (types.RankingEvent, error) {
	if err := s.running(); err != nil {
		return types.RankingEvent{}, err
	}
	rk, err := s.cache.Current(ctx, scope)
	if err != nil {
		return types.RankingEvent{}, err
	}
	if format != model.FormatUnknown && format != rk.Type {
		return types.RankingEvent{}, fmt.Errorf("%s ranking requested for %s: %w", format, scope, model.ErrFormatMismatch)
	}
	ev := types.RankingEvent{Scope: scope, RankingType: rk.Type, Rankings: rk, Diff: []types.Change{}}
	if p, ok := s.cache.Published(scope); ok {
		ev.Version = p.Version
	}
	return ev, nil
}

// Subscribe streams every published ranking event until ctx ends.
func (s *Service) Subscribe(ctx context.Context) (<-chan types.RankingEvent, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.publisher.Subscribe(ctx)
}

// Group returns the metadata of a group.
func (s *Service) Group(ctx context.Context, groupID int64) (model.Group, error) {
	if err := s.running(); err != nil {
		return model.Group{}, err
	}
	return s.catalog.Group(ctx, groupID)
}

// Round returns the metadata of a round.
func (s *Service) Round(ctx context.Context, roundID int64) (model.Round, error) {
	if err := s.running(); err != nil {
		return model.Round{}, err
	}
	return s.catalog.Round(ctx, roundID)
}

// SetGroupState moves a group forward in its lifecycle.
func (s *Service) SetGroupState(ctx context.Context, groupID int64, state model.GroupState) (model.Group, error) {
	if err := s.running(); err != nil {
		return model.Group{}, err
	}
	return s.catalog.SetGroupState(ctx, groupID, state)
}

// InsertBoulder adds a boulder at index and republishes the affected rankings.
func (s *Service) InsertBoulder(ctx context.Context, groupID int64, index int, b model.Boulder) (model.Group, error) {
	if err := s.running(); err != nil {
		return model.Group{}, err
	}
	g, err := s.catalog.InsertBoulder(ctx, groupID, index, b)
	if err != nil {
		return model.Group{}, err
	}
	s.changedGroup(ctx, g)
	return g, nil
}

// RemoveBoulder deletes a boulder with all its results.
func (s *Service) RemoveBoulder(ctx context.Context, groupID, boulderID int64) (model.Group, error) {
	if err := s.running(); err != nil {
		return model.Group{}, err
	}
	g, err := s.catalog.Group(ctx, groupID)
	if err != nil {
		return model.Group{}, err
	}
	if _, ok := g.Boulder(boulderID); !ok {
		return model.Group{}, fmt.Errorf("boulder %d, group %d: %w", boulderID, groupID, model.ErrBoulderNotInGroup)
	}
	n, err := s.store.DeleteBoulder(ctx, groupID, boulderID)
	if err != nil {
		return model.Group{}, err
	}
	g, err = s.catalog.RemoveBoulder(ctx, groupID, boulderID)
	if err != nil {
		return model.Group{}, err
	}
	s.logger.Info(ctx, "boulder removed",
		logger.Int64("group_id", groupID), logger.Int64("boulder_id", boulderID), logger.Int("results", n))
	s.changedGroup(ctx, g)
	return g, nil
}

// RemoveClimber takes a climber off a group roster with all their results.
func (s *Service) RemoveClimber(ctx context.Context, groupID, climberID int64) (model.Group, error) {
	if err := s.running(); err != nil {
		return model.Group{}, err
	}
	g, err := s.catalog.Group(ctx, groupID)
	if err != nil {
		return model.Group{}, err
	}
	if !g.HasClimber(climberID) {
		return model.Group{}, fmt.Errorf("climber %d, group %d: %w", climberID, groupID, model.ErrClimberNotInGroup)
	}
	n, err := s.store.DeleteClimber(ctx, groupID, climberID)
	if err != nil {
		return model.Group{}, err
	}
	g, err = s.catalog.RemoveClimber(ctx, groupID, climberID)
	if err != nil {
		return model.Group{}, err
	}
	s.logger.Info(ctx, "climber removed",
		logger.Int64("group_id", groupID), logger.Int64("climber_id", climberID), logger.Int("results", n))
	s.changedGroup(ctx, g)
	return g, nil
}

func (s *Service) changedGroup(ctx context.Context, g model.Group) {
	r, err := s.catalog.Round(ctx, g.RoundID)
	if err != nil {
		s.logger.Error(ctx, "round lookup after change", logger.Int64("group_id", g.ID), logger.Error(err))
		s.invalidate(ctx, model.GroupScope(g.ID))
		return
	}
	s.changed(ctx, g, r)
}

// changed invalidates the scopes a write to g can move and queues their
// recompute.
func (s *Service) changed(ctx context.Context, g model.Group, r model.Round) {
	s.invalidate(ctx,
		model.GroupScope(g.ID),
		model.RoundScope(r.ID),
		model.CompetitionScope(r.CompetitionID),
	)
}

func (s *Service) invalidate(ctx context.Context, scopes ...model.Scope) {
	s.cache.Invalidate(scopes...)
	for _, sc := range scopes {
		if !s.queue.Enqueue(ctx, queue.Job{Scope: sc}) {
			s.logger.Warn(ctx, "recompute not queued", logger.String("scope", sc.String()))
		}
	}
}

// build computes the ranking of a scope from the stored results. Round and
// competition rankings are merged from the cached rankings below them.
func (s *Service) build(ctx context.Context, scope model.Scope) (types.Rankings, error) {
	switch scope.Kind {
	case model.ScopeGroup:
		g, err := s.catalog.Group(ctx, scope.ID)
		if err != nil {
			return types.Rankings{}, err
		}
		r, err := s.catalog.Round(ctx, g.RoundID)
		if err != nil {
			return types.Rankings{}, err
		}
		results, err := s.store.ListByGroup(ctx, g.ID)
		if err != nil {
			return types.Rankings{}, err
		}
		return ranking.Group(r, g, results, ranking.WithTolerance(s.tolerance))

	case model.ScopeRound:
		r, err := s.catalog.Round(ctx, scope.ID)
		if err != nil {
			return types.Rankings{}, err
		}
		groups := make([]types.Rankings, 0, len(r.GroupIDs))
		for _, id := range r.GroupIDs {
			rk, err := s.cache.Current(ctx, model.GroupScope(id))
			if err != nil {
				return types.Rankings{}, err
			}
			groups = append(groups, rk)
		}
		return ranking.Round(r.Format, groups), nil

	case model.ScopeCompetition:
		c, err := s.catalog.Competition(ctx, scope.ID)
		if err != nil {
			return types.Rankings{}, err
		}
		rounds := make([]types.Rankings, 0, len(c.RoundIDs))
		for _, id := range c.RoundIDs {
			rk, err := s.cache.Current(ctx, model.RoundScope(id))
			if err != nil {
				return types.Rankings{}, err
			}
			rounds = append(rounds, rk)
		}
		return ranking.Competition(rounds), nil

	default:
		return types.Rankings{}, fmt.Errorf("scope %s: %w", scope, model.ErrInvalidInput)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		if n, err := s.store.Count(ctx); err == nil {
			stats["results"] = n
		}
		if c, ok := s.catalog.(interface{ Stats() map[string]int }); ok {
			for k, v := range c.Stats() {
				stats[k] = v
			}
		}
	}
	return stats
}

func outcome(err error, duplicate bool) string {
	switch {
	case duplicate:
		return "duplicate"
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, model.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, model.ErrMembership):
		return "membership"
	case errors.Is(err, model.ErrGroupNotOngoing):
		return "not_ongoing"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrFormatMismatch):
		return "format_mismatch"
	default:
		return "error"
	}
}
