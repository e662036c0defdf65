// Package worker recomputes and publishes scope rankings off the queue.
package worker

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/crux/internal/adapters/mq/queue"
	"github.com/okian/crux/internal/domain/diff"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/snapshot"
	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/logger"
	"github.com/okian/crux/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Snapshots is the ranking cache workers read from and commit to.
type Snapshots interface {
	Current(ctx context.Context, scope model.Scope) (types.Rankings, error)
	Published(scope model.Scope) (snapshot.Published, bool)
	NextVersion(scope model.Scope) uint64
	Commit(scope model.Scope, version uint64, rankings types.Rankings) bool
}

// Publisher delivers ranking events.
type Publisher interface {
	Publish(ctx context.Context, ev types.RankingEvent) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context, partition int) <-chan queue.Job
	Partitions() int
}

// Worker consumes one partition. It is the only writer of the published
// rankings of the scopes routed to it.
type Worker struct {
	queue     Queue
	partition int
	snapshots Snapshots
	publisher Publisher
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker for one partition with configuration options.
func NewWorker(q Queue, partition int, snaps Snapshots, pub Publisher, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		partition: partition,
		snapshots: snaps,
		publisher: pub,
		name:      "worker-" + strconv.Itoa(partition),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes jobs until ctx ends, Shutdown is called or the partition closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx, w.partition)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.Process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing job",
					logger.String("scope", j.Scope.String()), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker after the job in progress.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process recomputes the ranking of the job scope, diffs it against the last
// published ranking and publishes it under the next version. A ranking equal
// to the published one is not published again.
func (w *Worker) Process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	kind := string(j.Scope.Kind)
	rk, err := w.snapshots.Current(ctx, j.Scope)
	metrics.RecordRankingCompute(kind, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "compute_error")
		return fmt.Errorf("compute %s: %w", j.Scope, err)
	}

	prev, ok := w.snapshots.Published(j.Scope)
	if ok && reflect.DeepEqual(prev.Rankings, rk) {
		return nil
	}

	changes := diff.Compute(prev.Rankings.Entries, rk.Entries)
	version := w.snapshots.NextVersion(j.Scope)
	if !w.snapshots.Commit(j.Scope, version, rk) {
		w.logger.Debug(ctx, "dropping stale ranking",
			logger.String("scope", j.Scope.String()), logger.Uint64("version", version))
		return nil
	}

	ev := types.RankingEvent{
		Scope:       j.Scope,
		RankingType: rk.Type,
		Rankings:    rk,
		Diff:        changes,
		Version:     version,
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "publish_error")
		return fmt.Errorf("publish %s: %w", j.Scope, err)
	}
	metrics.RecordRankingPublished(kind)
	return nil
}

// Pool runs one worker per queue partition.
type Pool struct {
	workers []*Worker
	queue   Queue
	active  atomic.Int64

	logger logger.Logger
}

// NewPool creates a worker for every partition of q.
func NewPool(q Queue, snaps Snapshots, pub Publisher) *Pool {
	p := &Pool{
		workers: make([]*Worker, q.Partitions()),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(q, i, snaps, pub)
	}
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(len(p.workers))
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go func(w *Worker) {
			n := p.active.Add(1)
			metrics.UpdateWorkerActiveCount(int(n))
			metrics.UpdateWorkerIdleCount(len(p.workers) - int(n))
			defer func() {
				n := p.active.Add(-1)
				metrics.UpdateWorkerActiveCount(int(n))
				metrics.UpdateWorkerIdleCount(len(p.workers) - int(n))
			}()
			w.Run(ctx)
		}(w)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
