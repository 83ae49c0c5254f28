// Package hub fans domain events out to every connected subscriber.
// Delivery is best-effort: a slow or dead connection is dropped, never
// allowed to stall the publisher or its peers.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/metrics"
)

// Socket is the transport a connection writes to. The api package
// adapts a websocket; tests inject fakes.
type Socket interface {
	// Send writes one complete message.
	Send(data []byte) error
	// Ping sends a liveness probe.
	Ping() error
	// Close tears the transport down. Must be safe to call twice.
	Close() error
}

// Options tune per-connection queues and heartbeats.
type Options struct {
	// SendQueueSize bounds each connection's outbound queue. On
	// overflow the connection is dropped.
	SendQueueSize int
	// PingPeriod is the interval between liveness probes.
	PingPeriod time.Duration
	// MissedPings is how many silent ping periods are tolerated
	// before the connection is considered dead.
	MissedPings int
}

// Conn is an opaque subscriber handle, owned exclusively by the Hub.
type Conn struct {
	id       string
	sock     Socket
	send     chan []byte
	done     chan struct{}
	lastSeen atomic.Int64 // unix nanos of last pong or client message
}

// ID returns the connection's identifier.
func (c *Conn) ID() string { return c.id }

// Touch records liveness. The read side calls it on every pong or
// inbound message.
func (c *Conn) Touch() { c.lastSeen.Store(time.Now().UnixNano()) }

// Hub maintains the set of registered connections.
type Hub struct {
	opts  Options
	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// New creates a Hub.
func New(opts Options) *Hub {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 256
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 20 * time.Second
	}
	if opts.MissedPings <= 0 {
		opts.MissedPings = 3
	}
	return &Hub{opts: opts, conns: make(map[*Conn]struct{})}
}

// Register adds a subscriber and starts its writer. The first message
// queued is a connection_status welcome.
func (h *Hub) Register(sock Socket) *Conn {
	c := &Conn{
		id:   uuid.New().String(),
		sock: sock,
		send: make(chan []byte, h.opts.SendQueueSize),
		done: make(chan struct{}),
	}
	c.Touch()

	welcome, err := event.New(event.TypeConnectionStatus, event.ConnectionStatus{
		ConnectionID: c.id,
		Status:       "connected",
		Message:      "connected to ranch real-time updates",
	})
	if err == nil {
		if data, err := json.Marshal(welcome); err == nil {
			c.send <- data
		}
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()
	metrics.ActiveConnections.Set(float64(total))

	go h.writePump(c)
	slog.Info("subscriber connected", "connection_id", c.id, "total", total)
	return c
}

// Unregister removes a subscriber and closes its transport. Safe to
// call multiple times and from any failure path.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	if present {
		delete(h.conns, c)
		close(c.done)
	}
	total := len(h.conns)
	h.mu.Unlock()

	if !present {
		return
	}
	_ = c.sock.Close()
	metrics.ActiveConnections.Set(float64(total))
	slog.Info("subscriber disconnected", "connection_id", c.id, "total", total)
}

// Publish delivers env to every registered connection, in publish
// order per connection. It never blocks: a connection whose queue is
// full is dropped instead.
func (h *Hub) Publish(env event.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("encode envelope failed", "type", env.Type, "err", err)
		return
	}

	var overflowed []*Conn
	h.mu.Lock()
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			overflowed = append(overflowed, c)
		}
	}
	h.mu.Unlock()
	metrics.EventsBroadcast.Inc()

	for _, c := range overflowed {
		slog.Warn("subscriber queue overflow, dropping connection", "connection_id", c.id)
		metrics.ConnectionsDropped.WithLabelValues("queue_overflow").Inc()
		h.Unregister(c)
	}
}

// ActiveConnections returns the current subscriber count.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll drops every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.Unregister(c)
	}
}

// writePump is the single writer for one connection: it drains the
// send queue in order and probes liveness on a ticker. A connection
// silent for MissedPings periods is dropped.
func (h *Hub) writePump(c *Conn) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer ticker.Stop()

	deadline := time.Duration(h.opts.MissedPings) * h.opts.PingPeriod
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.sock.Send(data); err != nil {
				metrics.ConnectionsDropped.WithLabelValues("write_error").Inc()
				h.Unregister(c)
				return
			}
		case <-ticker.C:
			silent := time.Since(time.Unix(0, c.lastSeen.Load()))
			if silent > deadline {
				slog.Warn("subscriber heartbeat timeout", "connection_id", c.id, "silent", silent)
				metrics.ConnectionsDropped.WithLabelValues("heartbeat_timeout").Inc()
				h.Unregister(c)
				return
			}
			if err := c.sock.Ping(); err != nil {
				metrics.ConnectionsDropped.WithLabelValues("write_error").Inc()
				h.Unregister(c)
				return
			}
		}
	}
}
