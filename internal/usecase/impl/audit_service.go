package impl

import (
	"context"
	"log/slog"

	deliverycontext "censo/internal/delivery/context"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/domain/service"
	"censo/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type auditService struct {
	txManager repository.TransactionManager
	logger    *slog.Logger
}

// AuditServiceParams holds dependencies for AuditService, injected by Fx.
type AuditServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Logger    *slog.Logger
}

// NewAuditService is the constructor for auditService.
func NewAuditService(params AuditServiceParams) usecase.AuditUsecase {
	return &auditService{
		txManager: params.TxManager,
		logger:    params.Logger,
	}
}

func (srv *auditService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Record stores the event unless (transaction ref, event type) was already recorded.
func (srv *auditService) Record(ctx context.Context, event *service.SurveyEvent, payload []byte) (bool, error) {
	if event == nil || event.TransactionRef == "" || event.EventType == "" {
		return false, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"event": "transaction_ref and event_type are required"})
	}

	auditLog := &entity.AuditLog{
		EventType:      event.EventType,
		TransactionRef: event.TransactionRef,
		DraftID:        event.DraftID,
		RequestID:      event.RequestID,
		Payload:        payload,
		OccurredAt:     event.OccurredAt,
	}
	if event.FamilyID != 0 {
		familyID := event.FamilyID
		auditLog.FamilyID = &familyID
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.AuditRepo().Create(ctx, auditLog)
	})
	if errors.Is(err, repository.ErrDuplicateAuditEvent) {
		srv.log(ctx).Debug("Survey event already recorded",
			slog.String("eventType", event.EventType),
			slog.String("transactionRef", event.TransactionRef),
		)

		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to record survey event")
	}

	srv.log(ctx).Info("Survey event recorded",
		slog.String("eventType", event.EventType),
		slog.String("transactionRef", event.TransactionRef),
		slog.Int64("auditID", auditLog.ID),
	)

	return true, nil
}
