package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"censo/config"
	"censo/internal/delivery/worker/handler"
	"censo/internal/domain/constants"
	"censo/internal/domain/service"
	"censo/internal/infra/pubsub"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAudit struct {
	events []*service.SurveyEvent
}

func (r *recordingAudit) Record(_ context.Context, event *service.SurveyEvent, _ []byte) (bool, error) {
	r.events = append(r.events, event)

	return true, nil
}

func newTestWorker(audit *recordingAudit) *echo.Echo {
	cfg := &config.Config{PubSub: &config.PubSubConfig{Provider: constants.PubSubProviderLocal}}
	logger := slog.New(slog.DiscardHandler)

	return newEcho(cfg, logger, handler.NewPushHandler(handler.PushHandlerParams{
		Config:  cfg,
		Logger:  logger,
		AuditUC: audit,
	}))
}

func TestWorkerServer_Routes(t *testing.T) {
	audit := &recordingAudit{}
	e := newTestWorker(audit)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	data, err := json.Marshal(&service.SurveyEvent{
		EventType:      constants.EventSurveyDeleted,
		TransactionRef: "tx-9",
		FamilyID:       9,
		OccurredAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	body, err := json.Marshal(pubsub.NewPushMessage(data, nil, "msg-9", time.Now()))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/push", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, audit.events, 1)
	assert.Equal(t, int64(9), audit.events[0].FamilyID)
}
