package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShardCount sets how many independently locked shards groups are spread over.
func WithShardCount(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}
