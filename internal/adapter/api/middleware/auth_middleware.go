package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"tidyhome/internal/domain/entity"
	"tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
	"tidyhome/pkg/response"
)

const (
	contextKeyUID    = "uid"
	contextKeyViewer = "viewer"
)

// ViewerVerifier turns an ID token into the viewer it identifies.
type ViewerVerifier interface {
	VerifyViewer(ctx context.Context, idToken string) (*entity.Viewer, error)
}

type AuthMiddleware struct {
	verifier ViewerVerifier
}

func NewAuthMiddleware(verifier ViewerVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken, err := bearerToken(c)
		if err != nil {
			return response.Error(c, err)
		}

		viewer, err := m.verifier.VerifyViewer(c.Request().Context(), idToken)
		if err != nil {
			logger.Debug("Authenticate: token rejected: %v", err)
			return response.Error(c, errors.Unauthorized("Invalid or expired token", nil))
		}

		c.Set(contextKeyUID, viewer.UserID)
		c.Set(contextKeyViewer, *viewer)
		return next(c)
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a WebSocket handshake, so a token query parameter is accepted as well.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
		return "", errors.Unauthorized("Authorization header is required", nil)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.Unauthorized("Invalid authorization format", nil)
	}
	return parts[1], nil
}

// ViewerFromContext returns the viewer set by Authenticate.
func ViewerFromContext(c echo.Context) (entity.Viewer, bool) {
	viewer, ok := c.Get(contextKeyViewer).(entity.Viewer)
	return viewer, ok
}

// SetViewer stores a viewer on the context the way Authenticate does.
func SetViewer(c echo.Context, viewer entity.Viewer) {
	c.Set(contextKeyUID, viewer.UserID)
	c.Set(contextKeyViewer, viewer)
}
