// Package eventbus implements the push-style WebSocket fan-out shared by
// the input daemon's /input/ws and the router's /router/ws: a subscriber
// map plus one buffered channel per client, generalized from a raw-bytes
// broadcaster to typed eventtypes.Event values with a bounded-backpressure
// policy. Published events are also kept in a ring buffer; the hub never
// replays that ring to a new subscriber.
package eventbus

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

const (
	// defaultHighWaterMark is the send-queue depth at which a subscriber's
	// oldest buffered message is dropped instead of blocking the hub.
	defaultHighWaterMark = 64
	// maxDropEvents disconnects a persistently slow subscriber after this
	// many overflow events.
	maxDropEvents = 3
	// ringSize is the default retained backlog depth; the input daemon
	// doesn't replay it on connect (input is realtime) but the router
	// replays last_media once per new subscriber.
	ringSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // localhost-only surface, no cross-origin concern
}

// Subscriber is one live WebSocket connection on a hub's topic.
type Subscriber struct {
	id         string
	conn       *websocket.Conn
	send       chan eventtypes.Event
	drops      atomic.Int32
	closedOnce sync.Once
}

// ID returns the subscriber's session identifier, used in structured log
// lines and the drop-counter metric.
func (s *Subscriber) ID() string { return s.id }

// Hub owns one set of live subscribers and one monotonic seq counter. It is
// safe for concurrent use: the subscriber set is guarded by a mutex, but
// all mutation happens through register/unregister/Publish so callers never
// reach into the map directly.
type Hub struct {
	mu            sync.RWMutex
	subscribers   map[string]*Subscriber
	seq           atomic.Uint64
	highWaterMark int

	ring   []eventtypes.Event
	ringMu sync.Mutex

	// OnConnect, when set, returns an initial event to replay to every new
	// subscriber exactly once (the router's cached last_media, or the
	// input daemon's current menu snapshot). Returning ok=false sends
	// nothing.
	OnConnect func() (eventtypes.Event, bool)
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		subscribers:   make(map[string]*Subscriber),
		highWaterMark: defaultHighWaterMark,
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection, registers the
// resulting subscriber, and pumps outbound events until the connection
// closes or ctx is cancelled.
func (h *Hub) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("eventbus: upgrade failed", "error", err)
		return
	}

	sub := &Subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan eventtypes.Event, h.highWaterMark),
	}
	h.register(sub)
	defer h.unregister(sub)

	if h.OnConnect != nil {
		if ev, ok := h.OnConnect(); ok {
			h.deliver(sub, ev)
		}
	}

	// Drain any inbound frames (this topic is push-only) so the connection
	// stays healthy and ping/pong control frames are processed; exit the
	// read loop is what tells us the client disconnected.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pumpWrites(ctx, conn, sub, readDone)
}

func pumpWrites(ctx context.Context, conn *websocket.Conn, sub *Subscriber, readDone <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case ev, ok := <-sub.send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(sub *Subscriber) {
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	slog.Info("eventbus: subscriber connected", "subscriber", sub.id)
}

func (h *Hub) unregister(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub.id)
	h.mu.Unlock()
	sub.closedOnce.Do(func() { close(sub.send) })
	if sub.conn != nil {
		sub.conn.Close()
	}
	slog.Info("eventbus: subscriber disconnected", "subscriber", sub.id)
}

// Publish stamps ev with the next sequence number and timestamp, appends it
// to the ring buffer, and fans it out to every connected subscriber in
// publish order.
func (h *Hub) Publish(ev eventtypes.Event) eventtypes.Event {
	ev.Seq = h.seq.Add(1)

	h.ringMu.Lock()
	h.ring = append(h.ring, ev)
	if len(h.ring) > ringSize {
		h.ring = h.ring[len(h.ring)-ringSize:]
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.deliver(sub, ev)
	}
	return ev
}

// deliver enqueues ev on sub's send channel, applying the drop-oldest
// backpressure policy and disconnecting the subscriber after three drop
// events.
func (h *Hub) deliver(sub *Subscriber, ev eventtypes.Event) {
	select {
	case sub.send <- ev:
		return
	default:
	}

	// Queue is full: drop the oldest buffered message to make room.
	select {
	case <-sub.send:
	default:
	}
	select {
	case sub.send <- ev:
	default:
	}

	drops := sub.drops.Add(1)
	slog.Warn("eventbus: subscriber queue overflow, dropped oldest message",
		"subscriber", sub.id, "drop_count", drops)

	if drops >= maxDropEvents {
		slog.Warn("eventbus: disconnecting persistently slow subscriber",
			"subscriber", sub.id, "drop_count", drops)
		h.unregister(sub)
	}
}

// SubscriberCount returns the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Seq returns the current sequence counter value, useful for /status
// endpoints.
func (h *Hub) Seq() uint64 {
	return h.seq.Load()
}
