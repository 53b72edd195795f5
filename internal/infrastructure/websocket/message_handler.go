package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
)

// Client frame types
const (
	MessageTypePing         = "ping"
	MessageTypeSendMessage  = "send_message"
	MessageTypeMarkRead     = "mark_read"
	MessageTypeDismissToast = "dismiss_toast"
	MessageTypeSync         = "sync"
)

// Server frame types, besides the session events
const (
	MessageTypePong  = "pong"
	MessageTypeAck   = "ack"
	MessageTypeError = "error"
	MessageTypeState = "state"
)

const commandTimeout = 15 * time.Second

// WSMessage is the envelope for frames in both directions.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

type incomingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type SendMessageData struct {
	Text string `json:"text"`
}

type DismissToastData struct {
	ToastID string `json:"toast_id"`
}

type AckData struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Dismissed *bool  `json:"dismissed,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleClientMessage dispatches one client frame to the session.
func (c *Client) HandleClientMessage(messageBytes []byte) {
	var msg incomingMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		logger.Warn("WebSocket: failed to unmarshal frame from %s: %v", c.UserID, err)
		c.sendError(apperrors.CodeBadRequest, "Invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.sendToClient(WSMessage{Type: MessageTypePong, Data: map[string]string{"status": "alive"}})

	case MessageTypeSendMessage:
		var data SendMessageData
		if !c.decodeData(msg, &data) {
			return
		}
		// Sends run concurrently with the read loop so an overlapping send is
		// rejected by the session rather than queued behind the first.
		c.goCommand(func(ctx context.Context) {
			c.handleSendMessage(ctx, data)
		})

	case MessageTypeMarkRead:
		c.goCommand(c.handleMarkRead)

	case MessageTypeDismissToast:
		var data DismissToastData
		if !c.decodeData(msg, &data) {
			return
		}
		if data.ToastID == "" {
			c.sendError(apperrors.CodeBadRequest, "toast_id is required")
			return
		}
		dismissed := c.session.DismissToast(data.ToastID)
		c.sendToClient(WSMessage{Type: MessageTypeAck, Data: AckData{Type: MessageTypeDismissToast, Dismissed: &dismissed}})

	case MessageTypeSync:
		// Replies with the full session state for a view that missed events.
		c.sendToClient(WSMessage{Type: MessageTypeState, Data: c.session.State()})

	default:
		logger.Debug("WebSocket: unknown frame type %q from %s", msg.Type, c.UserID)
		c.sendError(apperrors.CodeBadRequest, "Unknown message type")
	}
}

func (c *Client) decodeData(msg incomingMessage, v interface{}) bool {
	if len(msg.Data) == 0 {
		c.sendError(apperrors.CodeBadRequest, "Missing data for "+msg.Type)
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(apperrors.CodeBadRequest, "Invalid data for "+msg.Type)
		return false
	}
	return true
}

func (c *Client) goCommand(fn func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Client) handleSendMessage(ctx context.Context, data SendMessageData) {
	message, err := c.session.Send(ctx, data.Text)
	if err != nil {
		c.sendAppError(err)
		return
	}
	c.sendToClient(WSMessage{Type: MessageTypeAck, Data: AckData{Type: MessageTypeSendMessage, MessageID: message.ID}})
}

func (c *Client) handleMarkRead(ctx context.Context) {
	if err := c.session.MarkRead(ctx); err != nil {
		c.sendAppError(err)
		return
	}
	c.sendToClient(WSMessage{Type: MessageTypeAck, Data: AckData{Type: MessageTypeMarkRead}})
}

func (c *Client) sendAppError(err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.sendError(appErr.Code, appErr.Message)
		return
	}
	logger.Error("WebSocket: command from %s failed: %v", c.UserID, err)
	c.sendError(apperrors.CodeInternal, "An unexpected error occurred")
}

func (c *Client) sendError(code, message string) {
	c.sendToClient(WSMessage{Type: MessageTypeError, Data: ErrorData{Code: code, Message: message}})
}
