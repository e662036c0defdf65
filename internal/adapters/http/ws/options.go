package ws

import (
	"time"

	"github.com/okian/crux/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets how many events may wait for a client before it is
// considered too slow and disconnected.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
