package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerClient(t *testing.T, hub *FeedHub, c *Client) {
	t.Helper()
	select {
	case hub.register <- c:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not accept registration")
	}
}

func TestFeedHubEvictsSlowClient(t *testing.T) {
	hub := NewFeedHub(nil)
	go hub.Run()

	slow := &Client{ID: "slow", Send: make(chan []byte, 1), Hub: hub}
	slow.Send <- []byte("stuck") // fill the buffer so the next push overflows
	registerClient(t, hub, slow)

	hub.broadcast <- []byte(`{"kind":"alert"}`)

	// The hub loop must stay responsive after dropping the slow client.
	next := &Client{ID: "next", Send: make(chan []byte, 8), Hub: hub}
	registerClient(t, hub, next)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, slowPresent := hub.clients[slow]
		_, nextPresent := hub.clients[next]
		return !slowPresent && nextPresent
	}, 2*time.Second, 10*time.Millisecond)

	// Eviction closes the send channel once the buffered message drains.
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestFeedHubDeliversToHealthyClients(t *testing.T) {
	hub := NewFeedHub(nil)
	go hub.Run()

	c := &Client{ID: "dash", Send: make(chan []byte, 8), Hub: hub}
	registerClient(t, hub, c)

	hub.broadcast <- []byte(`{"kind":"sos"}`)

	select {
	case msg := <-c.Send:
		assert.JSONEq(t, `{"kind":"sos"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not delivered")
	}
}
