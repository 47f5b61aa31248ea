package gateway

import (
	"encoding/json"
	"testing"
)

func addTestClient(h *Hub, clientCode string) *Client {
	c := &Client{
		id:         "test-" + clientCode,
		send:       make(chan []byte, 4),
		hub:        h,
		clientCode: clientCode,
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func TestBroadcast_FiltersByAccount(t *testing.T) {
	h := NewHub(nil)
	watcherA := addTestClient(h, "AB1234")
	watcherB := addTestClient(h, "XY9999")
	watcherAll := addTestClient(h, "")

	h.broadcast(channelPrefix+"AB1234", []byte(`{"type":"PLACED"}`))

	if len(watcherA.send) != 1 {
		t.Error("account watcher should receive its own event")
	}
	if len(watcherB.send) != 0 {
		t.Error("other account's watcher must not receive the event")
	}
	if len(watcherAll.send) != 1 {
		t.Error("wildcard watcher should receive every event")
	}

	var envelope struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(<-watcherA.send, &envelope); err != nil {
		t.Fatalf("bad envelope: %v", err)
	}
	if envelope.Channel != channelPrefix+"AB1234" {
		t.Errorf("channel not carried: %s", envelope.Channel)
	}
}

func TestBroadcast_SlowClientSkipped(t *testing.T) {
	h := NewHub(nil)
	slow := addTestClient(h, "")
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("backlog")
	}

	// Must not block even though the client's buffer is full.
	h.broadcast(channelPrefix+"AB1234", []byte(`{}`))

	if len(slow.send) != cap(slow.send) {
		t.Error("full buffer should be left as-is")
	}
}

func TestClientCount(t *testing.T) {
	h := NewHub(nil)
	if h.ClientCount() != 0 {
		t.Fatal("fresh hub should be empty")
	}
	c := addTestClient(h, "AB1234")
	if h.ClientCount() != 1 {
		t.Error("count should track registrations")
	}
	h.RemoveClient(c)
	if h.ClientCount() != 0 {
		t.Error("count should track removals")
	}
}
