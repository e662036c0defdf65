package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/okian/crux/internal/domain/model"
)

type offerResult int

const (
	offerQueued offerResult = iota
	offerStale
	offerOverflow
	offerClosed
)

type client struct {
	id    string
	scope model.Scope
	conn  *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	sent   bool
	last   uint64
	closed bool
}

// offer queues payload unless an event of the same or a newer version was
// already queued. A full buffer closes the client.
func (c *client) offer(version uint64, payload []byte) offerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return offerClosed
	}
	if c.sent && version <= c.last {
		return offerStale
	}
	select {
	case c.send <- payload:
		c.sent, c.last = true, version
		return offerQueued
	default:
		c.closed = true
		close(c.send)
		return offerOverflow
	}
}

// close stops the write pump. Safe to call more than once.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
