// Package ws streams live rankings to websocket clients grouped in scope rooms.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/logger"
	"github.com/okian/crux/pkg/metrics"
)

const (
	defaultSendBuffer   = 16
	defaultWriteTimeout = 5 * time.Second
	maxInboundMessage   = 512
)

// RankingSource provides the current ranking of a scope and the live stream.
type RankingSource interface {
	Rankings(ctx context.Context, scope model.Scope, format model.Format) (types.RankingEvent, error)
	Subscribe(ctx context.Context) (<-chan types.RankingEvent, error)
}

// Hub fans ranking events out to the clients of each scope room.
type Hub struct {
	source       RankingSource
	logger       logger.Logger
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration

	mu    sync.Mutex
	rooms map[model.Scope]map[*client]struct{}
	count int
}

// NewHub creates a hub reading from source.
func NewHub(source RankingSource, opts ...Option) *Hub {
	h := &Hub{
		source:       source,
		logger:       logger.Get().Named("ws"),
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		rooms:        make(map[model.Scope]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run subscribes to the ranking stream and broadcasts until ctx ends or the
// stream closes. Every client is disconnected on return.
func (h *Hub) Run(ctx context.Context) error {
	events, err := h.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.broadcast(ctx, ev)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// HandleRankings handles GET /ws/rankings?scope=group:1. The client first
// receives the current ranking of the scope, then every newer event.
func (h *Hub) HandleRankings(w http.ResponseWriter, r *http.Request) {
	scope, err := model.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	initial, err := h.source.Rankings(ctx, scope, model.FormatUnknown)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, model.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{
		id:    uuid.NewString(),
		scope: scope,
		conn:  conn,
		send:  make(chan []byte, h.sendBuffer),
	}
	h.join(c)
	h.logger.Debug(ctx, "client joined",
		logger.String("client_id", c.id), logger.String("scope", scope.String()))

	go h.writePump(c)

	// A live event may already have reached the client; the version check
	// discards the snapshot in that case.
	if payload, err := json.Marshal(initial); err == nil {
		h.deliver(ctx, c, initial.Version, payload)
	}

	h.readPump(c)
	h.leave(c)
	h.logger.Debug(ctx, "client left", logger.String("client_id", c.id))
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	room, ok := h.rooms[c.scope]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.scope] = room
	}
	room[c] = struct{}{}
	h.count++
	n := h.count
	h.mu.Unlock()
	metrics.UpdateWebsocketClients(n)
}

func (h *Hub) leave(c *client) {
	c.close()
	h.mu.Lock()
	room := h.rooms[c.scope]
	if _, ok := room[c]; ok {
		delete(room, c)
		h.count--
		if len(room) == 0 {
			delete(h.rooms, c.scope)
		}
	}
	n := h.count
	h.mu.Unlock()
	metrics.UpdateWebsocketClients(n)
}

func (h *Hub) broadcast(ctx context.Context, ev types.RankingEvent) {
	h.mu.Lock()
	room := h.rooms[ev.Scope]
	targets := make([]*client, 0, len(room))
	for c := range room {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error(ctx, "failed to encode ranking event",
			logger.String("scope", ev.Scope.String()), logger.Error(err))
		return
	}
	for _, c := range targets {
		h.deliver(ctx, c, ev.Version, payload)
	}
}

func (h *Hub) deliver(ctx context.Context, c *client, version uint64, payload []byte) {
	switch c.offer(version, payload) {
	case offerStale:
		metrics.RecordStaleDrop("websocket")
	case offerOverflow:
		metrics.RecordWebsocketDropped("slow_client")
		h.logger.Warn(ctx, "disconnecting slow client",
			logger.String("client_id", c.id), logger.String("scope", c.scope.String()))
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			metrics.RecordWebsocketDropped("write_error")
			c.close()
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains inbound frames so close and ping frames are processed. It
// returns once the connection fails or closes.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxInboundMessage)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for c := range room {
			c.close()
		}
	}
}
