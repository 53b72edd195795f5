package middleware

import (
	"github.com/labstack/echo/v4"

	"tidyhome/internal/domain/entity"
	"tidyhome/pkg/errors"
	"tidyhome/pkg/response"
)

type AdminMiddleware struct{}

func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		viewer, ok := ViewerFromContext(c)
		if !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		if viewer.Role != entity.RoleAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}

		return next(c)
	}
}
