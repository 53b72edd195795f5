package router

import (
	"github.com/labstack/echo/v4"

	"tidyhome/internal/adapter/api/handler"
	"tidyhome/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	wsHandler := handler.GetWebSocketHandler()

	// One socket per mounted chat view; the token comes in the query string
	e.GET("/v1/ws/conversations/:id", wsHandler.HandleConversation, authMiddleware.Authenticate)
}
