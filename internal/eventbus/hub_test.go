package eventbus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

func newTestServer(t *testing.T, h *Hub) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(r.Context(), w, r)
	}))
	wsURL := "ws" + srv.URL[len("http"):]
	return srv, wsURL
}

func TestPublishDeliversInOrder(t *testing.T) {
	h := New()
	srv, wsURL := newTestServer(t, h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the subscriber.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		h.Publish(eventtypes.NewEvent(eventtypes.EventNav, i))
	}

	var lastSeq uint64
	for i := 0; i < 5; i++ {
		var ev eventtypes.Event
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if ev.Seq <= lastSeq {
			t.Fatalf("event %d out of order: seq %d after %d", i, ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq
	}
}

func TestOnConnectReplaysOnce(t *testing.T) {
	h := New()
	h.OnConnect = func() (eventtypes.Event, bool) {
		return eventtypes.NewEvent(eventtypes.EventMediaUpdate, "cached").WithReason("client_connect"), true
	}
	srv, wsURL := newTestServer(t, h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var ev eventtypes.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Reason != "client_connect" {
		t.Fatalf("expected replayed client_connect event, got %+v", ev)
	}
}

func TestSubscriberDisconnectedAfterThreeDrops(t *testing.T) {
	h := New()
	h.highWaterMark = 1
	sub := &Subscriber{id: "slow", send: make(chan eventtypes.Event, 1)}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	// Fill the queue once so every subsequent deliver forces a drop.
	sub.send <- eventtypes.NewEvent(eventtypes.EventNav, "first")

	for i := 0; i < maxDropEvents; i++ {
		h.deliver(sub, eventtypes.NewEvent(eventtypes.EventNav, i))
	}

	h.mu.RLock()
	_, stillPresent := h.subscribers[sub.id]
	h.mu.RUnlock()
	if stillPresent {
		t.Fatal("expected subscriber to be disconnected after three drop events")
	}
}
