package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"censo/config"
	"censo/internal/delivery/api/response"
	"censo/internal/delivery/api/validator"
	"censo/internal/domain/constants"
	domainerrors "censo/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleError(t *testing.T, env string, err error) (int, response.ErrorResponse) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Env.Env = env
	m := NewErrorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	m.HandleHTTPError(err, c)

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)

	return rec.Code, body
}

func TestErrorMiddleware_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{
			name:        "wrapped app error keeps details",
			env:         constants.EnvProduction,
			err:         errors.Wrap(domainerrors.ErrDuplicateFamily.WithDetails(map[string]any{"existingFamilyId": 4}), "failed"),
			wantStatus:  http.StatusConflict,
			wantCode:    "DUPLICATE_FAMILY",
			wantDetails: true,
		},
		{
			name:        "server app error hides details in production",
			env:         constants.EnvProduction,
			err:         domainerrors.ErrTransactionFailed.WithDetails("pq: connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domainerrors.ErrTransactionFailed.ErrorCode(),
			wantDetails: false,
		},
		{
			name:        "server app error shows details outside production",
			env:         constants.EnvDevelop,
			err:         domainerrors.ErrTransactionFailed.WithDetails("pq: connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domainerrors.ErrTransactionFailed.ErrorCode(),
			wantDetails: true,
		},
		{
			name:       "echo http error",
			env:        constants.EnvDevelop,
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed),
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "HTTP_ERROR",
		},
		{
			name:        "unknown error outside production",
			env:         constants.EnvDevelop,
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domainerrors.ErrInternalError.ErrorCode(),
			wantDetails: true,
		},
		{
			name:       "unknown error in production",
			env:        constants.EnvProduction,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   domainerrors.ErrInternalError.ErrorCode(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := handleError(t, tt.env, tt.err)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			if tt.wantDetails {
				assert.NotNil(t, body.Error.Details)
			} else {
				assert.Nil(t, body.Error.Details)
			}
		})
	}
}

func TestErrorMiddleware_ValidationError(t *testing.T) {
	err := &validator.ValidationError{Fields: []validator.FieldError{
		{Field: "family.surname", Rule: "required"},
		{Field: "family.email", Rule: "email"},
	}}

	status, body := handleError(t, constants.EnvDevelop, errors.WithStack(err))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	details, ok := body.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"family.surname"}, details["missingFields"])
	assert.Len(t, details["fields"], 2)
}
