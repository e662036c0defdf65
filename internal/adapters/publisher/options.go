package publisher

const defaultBuffer = 64

type config struct {
	buffer int64
}

// Option configures the Watermill publisher.
type Option func(*config)

// WithBuffer sets the output buffer of each subscription.
func WithBuffer(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.buffer = int64(n)
		}
	}
}
