// Package main provides the WebSocket feed for live sync events.
package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Barneycle/ganapp-core/internal/logging"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/netmon"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

// Event types pushed to the desktop shell.
const (
	EventQueueSnapshot  = "queue.snapshot"
	EventNetworkChanged = "network.changed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The bridge serves the local shell only.
		return isLoopbackHost(r.Host)
	},
}

// isLoopbackHost reports whether host (possibly host:port) is local.
func isLoopbackHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// WSEnvelope wraps every message pushed over the socket.
type WSEnvelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// WSClient is one connected shell window.
type WSClient struct {
	id   models.UUID
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub fans sync events out to connected clients. The run loop owns
// the client set; everything else talks to it through channels.
type WSHub struct {
	clients    map[models.UUID]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
}

// NewWSHub creates the hub and starts its run loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[models.UUID]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			logging.Debug("ws client connected",
				zap.String("client", string(client.id)), zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			logging.Debug("ws client disconnected",
				zap.String("client", string(client.id)), zap.Int("total", len(h.clients)))

		case message := <-h.broadcast:
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop the connection.
					close(client.send)
					delete(h.clients, id)
				}
			}
		}
	}
}

// Broadcast pushes one typed event to every client.
func (h *WSHub) Broadcast(eventType string, data any) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("failed to marshal ws event", err, zap.String("type", eventType))
		return
	}
	h.broadcast <- bytes
}

// Watch forwards queue snapshots and connectivity transitions to the
// socket until ctx ends. The shell fetches its initial state over REST
// and treats the socket as a change feed.
func (h *WSHub) Watch(ctx context.Context, q *queue.Queue, m *netmon.Monitor) {
	snaps, cancelSnaps := q.Subscribe()
	defer cancelSnaps()
	states, cancelStates := m.Subscribe()
	defer cancelStates()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			h.Broadcast(EventQueueSnapshot, snap)
		case st, ok := <-states:
			if !ok {
				return
			}
			h.Broadcast(EventNetworkChanged, st)
		}
	}
}

// readPump drains client messages. The shell only ever sends pings.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("ws read error", zap.Error(err))
			}
			return
		}

		var msg struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Action == "ping" {
			c.sendPong()
		}
	}
}

// writePump pushes hub messages to the connection and keeps it alive.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) sendPong() {
	bytes, _ := json.Marshal(map[string]any{
		"action":    "pong",
		"timestamp": time.Now().Unix(),
	})
	select {
	case c.send <- bytes:
	default:
	}
}

// HandleWebSocket upgrades a connection and joins it to the hub.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("ws upgrade failed", zap.Error(err))
			return
		}

		client := &WSClient{
			id:   models.NewUUID(),
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
