package repository

import (
	"context"

	"censo/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrDuplicateAuditEvent is returned when the event was already recorded.
var ErrDuplicateAuditEvent = errors.New("audit event already recorded")

// AuditRepository stores survey events consumed by the audit worker.
type AuditRepository interface {
	// Create records one event; ErrDuplicateAuditEvent when (transaction ref, event type) is on file.
	Create(ctx context.Context, log *entity.AuditLog) error
}
