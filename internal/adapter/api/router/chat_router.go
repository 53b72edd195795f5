package router

import (
	"github.com/labstack/echo/v4"

	"tidyhome/internal/adapter/api/handler"
	"tidyhome/internal/adapter/api/middleware"
)

// SetupConversationRouter sets up the chat REST routes (excluding WebSocket)
func SetupConversationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, apiLimit echo.MiddlewareFunc) {
	conversationHandler := handler.GetConversationHandler()

	conversations := e.Group("/v1/conversations")
	conversations.Use(apiLimit)
	conversations.Use(authMiddleware.Authenticate)

	conversations.GET("/:id/messages", conversationHandler.GetMessages)
	conversations.POST("/:id/messages", conversationHandler.SendMessage)
	conversations.PUT("/:id/read", conversationHandler.MarkRead)
	conversations.GET("/:id/unread", conversationHandler.GetUnread)

	// Legacy counter record, kept for the admin request list
	conversations.GET("/:id/counter", conversationHandler.GetCounter, adminMiddleware.AdminOnly)
}
