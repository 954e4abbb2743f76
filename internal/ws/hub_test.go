package ws

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(h *Hub, restaurantID string) *Client {
	return &Client{
		hub:          h,
		restaurantID: restaurantID,
		send:         make(chan []byte, 8),
	}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestBroadcastReachesRoomClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := newTestClient(h, "rest-1")
	b := newTestClient(h, "rest-1")
	h.register <- a
	h.register <- b

	h.Broadcast("rest-1", Event{Type: "orders.updated", Payload: json.RawMessage(`{"tables": 3}`)})

	for _, c := range []*Client{a, b} {
		var ev Event
		if err := json.Unmarshal(recv(t, c), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != "orders.updated" {
			t.Errorf("type = %q, want orders.updated", ev.Type)
		}
	}
}

func TestBroadcastIsRoomScoped(t *testing.T) {
	h := NewHub()
	go h.Run()

	mine := newTestClient(h, "rest-1")
	other := newTestClient(h, "rest-2")
	h.register <- mine
	h.register <- other

	h.Broadcast("rest-1", Event{Type: "orders.updated"})

	recv(t, mine)
	select {
	case msg := <-other.send:
		t.Fatalf("client in another room received %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient(h, "rest-1")
	h.register <- c
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed channel, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed after unregister")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := &Client{hub: h, restaurantID: "rest-1", send: make(chan []byte)}
	healthy := newTestClient(h, "rest-1")
	h.register <- slow
	h.register <- healthy

	// An unbuffered, never-read send channel forces the overflow path;
	// the healthy client keeps receiving.
	h.Broadcast("rest-1", Event{Type: "orders.updated"})
	recv(t, healthy)

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected closed channel for the slow client")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow client's channel not closed")
	}
}
