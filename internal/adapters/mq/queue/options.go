package queue

// Option applies a configuration option to the Partitioned queue.
type Option func(*Partitioned)

// WithCapacity sets the total capacity shared by the partitions.
func WithCapacity(capacity int) Option {
	return func(q *Partitioned) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithPartitions sets the number of partitions, one consumer each.
func WithPartitions(n int) Option {
	return func(q *Partitioned) {
		if n > 0 {
			q.count = n
		}
	}
}
