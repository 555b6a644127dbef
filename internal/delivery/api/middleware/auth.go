package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"censo/config"
	"censo/internal/delivery/api/response"
	deliverycontext "censo/internal/delivery/context"
	"censo/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const contextKeyRoles = "roles"

// AuthMiddleware validates interviewer access tokens.
type AuthMiddleware struct {
	tokenSvc     service.TokenService
	enabled      bool
	requiredRole string
	logger       *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService, cfg *config.Config, logger *slog.Logger) *AuthMiddleware {
	m := &AuthMiddleware{
		tokenSvc: tokenSvc,
		logger:   logger,
	}
	if cfg.Auth != nil {
		m.enabled = cfg.Auth.Enabled
		m.requiredRole = cfg.Auth.RequiredRole
	}

	return m
}

// Authenticate validates the bearer token and stores the interviewer on the context.
// With auth disabled every request passes as the anonymous interviewer.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.enabled {
			return next(c)
		}

		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, "UNAUTHORIZED", "Authorization header is missing")
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			return response.Unauthorized(c, "UNAUTHORIZED", "Invalid token format, must be Bearer token")
		}

		claims, err := m.tokenSvc.ValidateToken(tokenString)
		if err != nil {
			return response.Unauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
		}
		if m.requiredRole != "" && !claims.HasRole(m.requiredRole) {
			return response.Error(c, http.StatusForbidden, "FORBIDDEN", "Token lacks the "+m.requiredRole+" role", nil)
		}

		ctx := c.Request().Context()
		logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger).With(slog.String("interviewer_id", claims.InterviewerID.String()))
		ctx = deliverycontext.WithLogger(deliverycontext.WithInterviewer(ctx, claims.InterviewerID), logger)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(contextKeyRoles, claims.Roles)

		return next(c)
	}
}

// GetUserID returns the authenticated interviewer id.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	return deliverycontext.InterviewerFromContext(c.Request().Context())
}

// GetRoles returns the authenticated interviewer's roles.
func GetRoles(c echo.Context) ([]string, bool) {
	roles, ok := c.Get(contextKeyRoles).([]string)

	return roles, ok
}
