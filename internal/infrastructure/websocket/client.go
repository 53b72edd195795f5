package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/usecase"
	"tidyhome/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 256
)

// Session is the chat engine a socket drives.
type Session interface {
	Send(ctx context.Context, text string) (*entity.Message, error)
	MarkRead(ctx context.Context) error
	DismissToast(id string) bool
	State() usecase.SessionSnapshot
	Events() <-chan usecase.SessionEvent
	Close()
}

// Client is one socket bound to one chat session.
type Client struct {
	UserID         string
	ConversationID string

	conn    *websocket.Conn
	session Session
	manager *Manager
	send    chan []byte
	done    chan struct{}

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewClient(conn *websocket.Conn, userID, conversationID string, session Session) *Client {
	return &Client{
		UserID:         userID,
		ConversationID: conversationID,
		conn:           conn,
		session:        session,
		send:           make(chan []byte, sendBufferSize),
		done:           make(chan struct{}),
	}
}

// Serve registers the client, marks the conversation read for the mounted
// view and runs the pumps. It returns once the socket is closed.
func (m *Manager) Serve(client *Client) {
	client.manager = m
	if !m.Register(client) {
		client.Close()
		return
	}

	client.markReadOnOpen()

	go client.WritePump()
	go client.forwardEvents()
	client.ReadPump()
}

// markReadOnOpen runs under the command timeout.
func (c *Client) markReadOnOpen() {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.session.MarkRead(ctx); err != nil {
		logger.Warn("WebSocket: mark read on open failed for %s: %v", c.ConversationID, err)
	}
}

// ReadPump reads client frames until the connection fails or closes.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket: read error from %s: %v", c.UserID, err)
			}
			return
		}
		c.HandleClientMessage(message)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error to %s: %v", c.UserID, err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// forwardEvents relays session events until the session closes.
func (c *Client) forwardEvents() {
	for event := range c.session.Events() {
		c.sendToClient(WSMessage{
			Type: string(event.Type),
			Data: event.Data,
		})
	}
}

func (c *Client) sendToClient(message WSMessage) {
	message.Timestamp = time.Now().UTC().Format(time.RFC3339)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s frame for %s: %v", message.Type, c.UserID, err)
		return
	}

	select {
	case <-c.done:
	case c.send <- messageBytes:
	default:
		logger.Warn("WebSocket: client %s send buffer full, closing connection", c.UserID)
		go c.Close()
	}
}

// Close tears the client down: the session first, then the socket.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.session.Close()
	c.inflight.Wait()
	if c.manager != nil {
		c.manager.Unregister(c)
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
