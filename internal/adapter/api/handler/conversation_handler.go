package handler

import (
	"github.com/labstack/echo/v4"

	"tidyhome/internal/adapter/api/middleware"
	"tidyhome/internal/domain/entity"
	"tidyhome/internal/usecase"
	"tidyhome/pkg/errors"
	"tidyhome/pkg/response"
	"tidyhome/pkg/utils"
)

type ConversationHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewConversationHandler(chatUseCase *usecase.ChatUseCase) *ConversationHandler {
	return &ConversationHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type unreadResponse struct {
	ConversationID string      `json:"conversation_id"`
	Role           entity.Role `json:"role"`
	Unread         int         `json:"unread"`
}

// authorize resolves the caller and checks access to the :id conversation.
func (h *ConversationHandler) authorize(c echo.Context) (entity.Viewer, string, error) {
	viewer, ok := middleware.ViewerFromContext(c)
	if !ok {
		return entity.Viewer{}, "", errors.Unauthorized("Authentication required", nil)
	}

	conversationID := c.Param("id")
	if _, err := h.chatUseCase.AuthorizeConversation(c.Request().Context(), viewer, conversationID); err != nil {
		return entity.Viewer{}, "", err
	}
	return viewer, conversationID, nil
}

// GetMessages lists a conversation ascending by createdAt, one page at a time.
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	_, conversationID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	messages, err := h.chatUseCase.ListMessages(c.Request().Context(), conversationID)
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	start, end := params.Bounds(len(messages))
	return response.Paginated(c, messages[start:end], int64(len(messages)), params.Page, params.PageSize)
}

// SendMessage appends a message as the caller. Clients holding a chat socket
// send through it instead so overlapping sends are rejected per view.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	viewer, conversationID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		ConversationID: conversationID,
		Viewer:         viewer,
		Text:           req.Text,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	viewer, conversationID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.chatUseCase.MarkRead(c.Request().Context(), conversationID, viewer.Role); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"message": "Conversation marked as read",
	})
}

func (h *ConversationHandler) GetUnread(c echo.Context) error {
	viewer, conversationID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	count, err := h.chatUseCase.UnreadCount(c.Request().Context(), conversationID, viewer.Role)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, unreadResponse{
		ConversationID: conversationID,
		Role:           viewer.Role,
		Unread:         count,
	})
}

// GetCounter returns the stored counter pair for list badges.
func (h *ConversationHandler) GetCounter(c echo.Context) error {
	_, conversationID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	counter, err := h.chatUseCase.UnreadCounter(c.Request().Context(), conversationID)
	if err != nil {
		return response.Error(c, err)
	}
	counter.ConversationID = conversationID

	return response.Success(c, counter)
}
