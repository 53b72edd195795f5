package router

import (
	"github.com/labstack/echo/v4"

	"tidyhome/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, apiLimit echo.MiddlewareFunc) {
	SetupHealthRouter(e)
	SetupConversationRouter(e, authMiddleware, adminMiddleware, apiLimit)
	SetupWebSocketRouter(e, authMiddleware)
}
