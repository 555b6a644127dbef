package usecase

import (
	"context"

	"censo/internal/domain/service"
)

// AuditUsecase records survey events delivered to the audit worker.
type AuditUsecase interface {
	// Record stores the event once. Redelivered events return recorded=false and no error.
	Record(ctx context.Context, event *service.SurveyEvent, payload []byte) (recorded bool, err error)
}
