package impl

import (
	"context"
	"testing"
	"time"

	"censo/internal/domain/constants"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_Record(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()
	draftID := uuid.New()

	event := &service.SurveyEvent{
		RequestID:      "req-1",
		EventType:      constants.EventSurveyCompleted,
		TransactionRef: uuid.NewString(),
		FamilyID:       12,
		DraftID:        &draftID,
		OccurredAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	recorded, err := fixtures.audit.Record(ctx, event, []byte(`{"event_type":"survey.completed"}`))
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = fixtures.audit.Record(ctx, event, nil)
	require.NoError(t, err)
	assert.False(t, recorded, "redelivery is acknowledged without a second row")

	deleted := *event
	deleted.EventType = constants.EventSurveyDeleted
	recorded, err = fixtures.audit.Record(ctx, &deleted, nil)
	require.NoError(t, err)
	assert.True(t, recorded, "a different event type under the same transaction is distinct")
}

func TestAuditService_Record_Invalid(t *testing.T) {
	fixtures := createTestServices(t, 3)

	tests := []struct {
		name  string
		event *service.SurveyEvent
	}{
		{name: "nil event", event: nil},
		{name: "missing transaction ref", event: &service.SurveyEvent{EventType: constants.EventSurveyCreated}},
		{name: "missing event type", event: &service.SurveyEvent{TransactionRef: "tx-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorded, err := fixtures.audit.Record(context.Background(), tt.event, nil)
			assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
			assert.False(t, recorded)
		})
	}
}
