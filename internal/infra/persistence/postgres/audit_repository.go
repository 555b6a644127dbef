package postgres

import (
	"context"

	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository is the constructor for auditRepository.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{
		db: db,
	}
}

// Create stores one event; a redelivered event hits the unique index.
func (repo *auditRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	logM := &model.SurveyAuditLogModel{
		TransactionRef: log.TransactionRef,
		EventType:      log.EventType,
		FamilyID:       log.FamilyID,
		DraftID:        log.DraftID,
		RequestID:      log.RequestID,
		Payload:        datatypes.JSON(log.Payload),
		OccurredAt:     log.OccurredAt,
	}

	if err := repo.db.WithContext(ctx).Create(logM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateAuditEvent
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to record survey audit event")
	}

	log.ID = logM.ID
	log.RecordedAt = logM.RecordedAt

	return nil
}
