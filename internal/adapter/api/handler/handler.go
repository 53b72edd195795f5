package handler

import (
	"tidyhome/internal/infrastructure/websocket"
	"tidyhome/internal/usecase"
)

var (
	conversationHandler *ConversationHandler
	webSocketHandler    *WebSocketHandler
)

func Setup(chatUseCase *usecase.ChatUseCase, wsManager *websocket.Manager) {
	conversationHandler = NewConversationHandler(chatUseCase)
	webSocketHandler = NewWebSocketHandler(chatUseCase, wsManager)
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}
