package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionTester reports whether a backing service is reachable.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

type HealthHandler struct {
	authBackend ConnectionTester
	storeDriver string
}

var healthHandler *HealthHandler

func NewHealthHandler(authBackend ConnectionTester, storeDriver string) *HealthHandler {
	return &HealthHandler{
		authBackend: authBackend,
		storeDriver: storeDriver,
	}
}

func SetupHealthHandler(authBackend ConnectionTester, storeDriver string) {
	healthHandler = NewHealthHandler(authBackend, storeDriver)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"store":  h.storeDriver,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) CheckFirebaseHealth(c echo.Context) error {
	if h.authBackend == nil {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "Firebase Auth not configured",
		})
	}

	err := h.authBackend.TestConnection(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "Firebase Auth connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Firebase Auth connected successfully",
	})
}
