package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"censo/config"
	deliverycontext "censo/internal/delivery/context"
	"censo/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTokenService struct {
	claims *service.Claims
}

func (f *fakeTokenService) ValidateToken(tokenString string) (*service.Claims, error) {
	if tokenString != "good" {
		return nil, errors.New("bad token")
	}

	return f.claims, nil
}

func runAuth(m *AuthMiddleware, header string) (*httptest.ResponseRecorder, echo.Context, bool) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	_ = m.Authenticate(func(echo.Context) error {
		called = true

		return nil
	})(c)

	return rec, c, called
}

func TestAuthMiddleware_Enabled(t *testing.T) {
	userID := uuid.New()
	cfg := &config.Config{Auth: &config.AuthConfig{Enabled: true}}
	m := NewAuthMiddleware(&fakeTokenService{claims: &service.Claims{InterviewerID: userID, Roles: []string{"admin"}}}, cfg, discardLogger)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCalled bool
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, c, called := runAuth(m, tt.header)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if !tt.wantCalled {
				return
			}

			got, ok := GetUserID(c)
			require.True(t, ok)
			assert.Equal(t, userID, got)
			scoped, ok := deliverycontext.InterviewerFromContext(c.Request().Context())
			require.True(t, ok)
			assert.Equal(t, userID, scoped)
			roles, ok := GetRoles(c)
			require.True(t, ok)
			assert.Equal(t, []string{"admin"}, roles)
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	for _, cfg := range []*config.Config{{}, {Auth: &config.AuthConfig{Enabled: false}}} {
		m := NewAuthMiddleware(&fakeTokenService{}, cfg, discardLogger)

		_, c, called := runAuth(m, "")
		assert.True(t, called)

		_, ok := GetUserID(c)
		assert.False(t, ok)
	}
}

func TestAuthMiddleware_RequiredRole(t *testing.T) {
	cfg := &config.Config{Auth: &config.AuthConfig{Enabled: true, RequiredRole: service.RoleInterviewer}}

	m := NewAuthMiddleware(&fakeTokenService{claims: &service.Claims{InterviewerID: uuid.New(), Roles: []string{"catechist"}}}, cfg, discardLogger)
	rec, _, called := runAuth(m, "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	m = NewAuthMiddleware(&fakeTokenService{claims: &service.Claims{InterviewerID: uuid.New(), Roles: []string{service.RoleInterviewer}}}, cfg, discardLogger)
	rec, _, called = runAuth(m, "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
