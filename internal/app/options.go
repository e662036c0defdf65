package service

import (
	"github.com/okian/crux/internal/adapters/publisher"
	"github.com/okian/crux/internal/adapters/repository"
	"github.com/okian/crux/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of queue partitions, one worker each.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the total capacity of the recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the shard count of the default memory store.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithPublishBuffer sets the per-subscriber buffer of the default publisher.
func WithPublishBuffer(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.publishBuffer = n
		}
	}
}

// WithTieTolerance sets the points difference under which unlimited contest
// climbers are ex-aequo.
func WithTieTolerance(t float64) Option {
	return func(s *Service) {
		if t >= 0 {
			s.tolerance = t
		}
	}
}

// WithStore replaces the default memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCatalog sets the competition metadata.
func WithCatalog(c Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithPublisher replaces the default in-process publisher.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
