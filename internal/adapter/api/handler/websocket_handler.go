package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"tidyhome/internal/adapter/api/middleware"
	ws "tidyhome/internal/infrastructure/websocket"
	"tidyhome/internal/usecase"
	"tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
	"tidyhome/pkg/response"
)

type WebSocketHandler struct {
	chatUseCase *usecase.ChatUseCase
	wsManager   *ws.Manager
	upgrader    gorillaws.Upgrader
}

func NewWebSocketHandler(chatUseCase *usecase.ChatUseCase, wsManager *ws.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		chatUseCase: chatUseCase,
		wsManager:   wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConversation mounts one chat view: it authorizes the caller, opens a
// session on the conversation and serves it over the socket until it closes.
func (h *WebSocketHandler) HandleConversation(c echo.Context) error {
	viewer, ok := middleware.ViewerFromContext(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	conversationID := c.Param("id")
	if _, err := h.chatUseCase.AuthorizeConversation(c.Request().Context(), viewer, conversationID); err != nil {
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed for %s: %v", viewer.UserID, err)
		return nil
	}

	session := h.chatUseCase.OpenSession(c.Request().Context(), viewer, conversationID)
	client := ws.NewClient(conn, viewer.UserID, conversationID, session)

	h.wsManager.Serve(client)
	return nil
}
