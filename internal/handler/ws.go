package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development, configure for production
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	// Heartbeat interval
	pingInterval = 30 * time.Second
	// Write timeout
	writeTimeout = 10 * time.Second
)

// FeedMessage is the envelope pushed to dashboard clients. The kind is
// derived from the NATS subject (sos, alert, stats).
type FeedMessage struct {
	Kind    string          `json:"kind"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

// Client represents a WebSocket client connection.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *FeedHub
}

// FeedHub relays coordination events from NATS to connected dashboard
// clients. It subscribes to the whole event tree so new event types reach
// dashboards without hub changes.
type FeedHub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	natsConn   *nats.Conn
	sub        *nats.Subscription
	mu         sync.RWMutex
}

// NewFeedHub creates a new feed hub.
func NewFeedHub(nc *nats.Conn) *FeedHub {
	return &FeedHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		natsConn:   nc,
	}
}

// Run starts the hub's event loop.
func (h *FeedHub) Run() {
	if h.natsConn != nil {
		sub, err := h.natsConn.Subscribe("pravha.>", func(msg *nats.Msg) {
			envelope := FeedMessage{
				Kind:    feedKind(msg.Subject),
				Subject: msg.Subject,
				Data:    json.RawMessage(msg.Data),
			}
			data, err := json.Marshal(envelope)
			if err != nil {
				log.Printf("[Feed] Failed to marshal feed message: %v", err)
				return
			}
			h.broadcast <- data
		})
		if err != nil {
			log.Printf("[Feed] Failed to subscribe to NATS: %v", err)
		} else {
			h.sub = sub
			log.Println("[Feed] Hub started, subscribed to coordination events")
		}
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[Feed] Client connected: %s, total clients: %d", client.ID, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("[Feed] Client disconnected: %s, total clients: %d", client.ID, h.ClientCount())

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.Send <- message:
				default:
					// Slow client; evict inline rather than via the
					// unregister channel, which this loop drains.
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.Send)
					}
					h.mu.Unlock()
					log.Printf("[Feed] Dropped slow client: %s", client.ID)
				}
			}
		}
	}
}

// Stop stops the hub and cleans up resources.
func (h *FeedHub) Stop() {
	if h.sub != nil {
		h.sub.Unsubscribe()
	}
	h.mu.Lock()
	for client := range h.clients {
		close(client.Send)
		client.Conn.Close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *FeedHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// feedKind extracts the event family from a subject like "pravha.sos.CREATED".
func feedKind(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) >= 2 {
		return parts[1]
	}
	return "event"
}

// ReadPump drains incoming messages from the client. Clients only send pings;
// anything else is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Feed] Client %s read error: %v", c.ID, err)
			}
			break
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err == nil && msg.Type == "ping" {
			select {
			case c.Send <- []byte(`{"type":"pong"}`):
			default:
			}
		}
	}
}

// WritePump pushes outgoing messages to the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub *FeedHub
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(hub *FeedHub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleFeed upgrades the connection and attaches it to the live feed.
func (h *WSHandler) HandleFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Feed] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  h.hub,
	}
	client.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	welcome := map[string]interface{}{
		"type":      "connected",
		"message":   "Connected to Pravha live feed",
		"client_id": client.ID,
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// GetStats returns WebSocket hub statistics.
func (h *WSHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": h.hub.ClientCount(),
	})
}
