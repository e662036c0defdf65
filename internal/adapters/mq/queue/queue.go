// Package queue routes ranking recompute jobs to partitions.
//
// A scope always hashes to the same partition and each partition has a
// single consumer, so the recomputes of one scope never run concurrently.
package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultPartitions = 8
	defaultCapacity   = 4096
)

// Job asks for the ranking of a scope to be recomputed and published.
type Job struct {
	Scope    model.Scope
	Enqueued time.Time
}

// Queue provides non-blocking enqueue and per-partition dequeue.
type Queue interface {
	// Enqueue routes a job to its partition. It returns false when the
	// partition is full or the queue is closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns the jobs of one partition. The channel closes when the
	// queue is closed or ctx ends.
	Dequeue(ctx context.Context, partition int) <-chan Job

	// Partitions returns the number of partitions.
	Partitions() int

	// Len returns the number of queued jobs over all partitions.
	Len(ctx context.Context) int

	Close() error
	IsClosed() bool
}

// Partitioned implements Queue with one buffered channel per partition.
// A job for a scope that is already waiting is coalesced into the waiting one.
type Partitioned struct {
	partitions []chan Job
	capacity   int
	count      int

	pendingMu sync.Mutex
	pending   map[model.Scope]struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPartitioned creates a partitioned queue with configuration options.
// Capacity is shared evenly by the partitions.
func NewPartitioned(opts ...Option) *Partitioned {
	q := &Partitioned{
		capacity: defaultCapacity,
		count:    defaultPartitions,
		pending:  make(map[model.Scope]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	per := max(q.capacity/q.count, 1)
	q.partitions = make([]chan Job, q.count)
	for i := range q.partitions {
		q.partitions[i] = make(chan Job, per)
	}

	metrics.UpdateQueueCapacity(per * q.count)
	metrics.UpdateQueueSize(0)
	return q
}

// PartitionOf returns the partition a scope is routed to.
func (q *Partitioned) PartitionOf(s model.Scope) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.String()))
	return int(h.Sum32() % uint32(len(q.partitions)))
}

// Enqueue implements Queue.Enqueue.
func (q *Partitioned) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	q.pendingMu.Lock()
	_, waiting := q.pending[j.Scope]
	if waiting {
		q.pendingMu.Unlock()
		return true
	}
	q.pending[j.Scope] = struct{}{}
	q.pendingMu.Unlock()

	if j.Enqueued.IsZero() {
		j.Enqueued = time.Now()
	}
	select {
	case q.partitions[q.PartitionOf(j.Scope)] <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(q.size())
		return true
	default:
		q.clearPending(j.Scope)
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "partition_full")
		return false
	}
}

// Dequeue implements Queue.Dequeue.
func (q *Partitioned) Dequeue(ctx context.Context, partition int) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		in := q.partitions[partition]
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-in:
				if !ok {
					return
				}
				// later writes must enqueue again once this job is taken
				q.clearPending(j.Scope)
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(q.size())
				metrics.RecordQueueProcessingLatency(float64(time.Since(j.Enqueued).Microseconds()) / 1000)
				select {
				case out <- j:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (q *Partitioned) clearPending(s model.Scope) {
	q.pendingMu.Lock()
	delete(q.pending, s)
	q.pendingMu.Unlock()
}

func (q *Partitioned) size() int {
	n := 0
	for _, p := range q.partitions {
		n += len(p)
	}
	return n
}

// Partitions implements Queue.Partitions.
func (q *Partitioned) Partitions() int { return len(q.partitions) }

// Len implements Queue.Len.
func (q *Partitioned) Len(context.Context) int {
	n := q.size()
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops accepting jobs and closes every partition. Jobs already queued
// are still delivered.
func (q *Partitioned) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	for _, p := range q.partitions {
		close(p)
	}
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *Partitioned) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

var _ Queue = (*Partitioned)(nil)
