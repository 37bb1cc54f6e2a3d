package ws

// Copyright 2013 The Gorilla WebSocket Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketConn is the part of *websocket.Conn a Client uses.
type WebSocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	RemoteAddr() net.Addr
	SetReadLimit(size int64)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub
	// The websocket connection.
	Conn WebSocketConn
	// Buffered channel of outbound messages.
	Send      chan []byte
	SessionId string
	IP        string
	Handler   *PadMessageHandler

	room   string
	sendMu sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn WebSocketConn, ip string, handler *PadMessageHandler) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionId: uuid.NewString(),
		IP:        ip,
		Handler:   handler,
	}
}

// Room is the pad the client joined, or "" before CLIENT_READY.
func (c *Client) Room() string {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.room
}

func (c *Client) setRoom(room string) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.room = room
}

// enqueue queues message for the write pump. It reports false if the client
// is closed or its buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// readPump pumps messages from the websocket connection to the handler.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump(maxMessageSize int64, logger *zap.SugaredLogger) {
	defer func() {
		c.Handler.HandleDisconnect(c)
		c.Hub.unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("unexpected close of session %s: %v", c.SessionId, err)
			}
			return
		}
		c.Handler.HandleMessage(c, message)
	}
}

// writePump pumps messages from the Send channel to the websocket connection.
// It stops once Send is closed.
func (c *Client) writePump(logger *zap.SugaredLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debugf("error writing to session %s: %v", c.SessionId, err)
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from the peer. It returns once the
// connection is closed.
func ServeWs(w http.ResponseWriter, r *http.Request, ip string, handler *PadMessageHandler) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Warnf("error upgrading websocket connection from %s: %v", ip, err)
		return
	}
	client := NewClient(handler.hub, conn, ip, handler)
	handler.SessionStore.initSession(client.SessionId)
	client.Hub.register(client)
	go client.writePump(handler.logger)
	client.readPump(handler.settings.SocketIo.MaxHttpBufferSize, handler.logger)
}
