package repository

import (
	"context"

	"censo/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrDraftNotFound is returned when a survey draft is not found.
	ErrDraftNotFound = errors.New("survey draft not found")
	// ErrDraftVersionMismatch is returned when the stored version differs from the expected one.
	ErrDraftVersionMismatch = errors.New("survey draft version mismatch")
)

// DraftRepository defines the interface for survey draft persistence.
type DraftRepository interface {
	// Create persists a new draft.
	Create(ctx context.Context, draft *entity.SurveyDraft) error

	// FindByID retrieves a draft by its identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.SurveyDraft, error)

	// FindByOwner returns the owner's drafts, most recently updated first.
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.SurveyDraft, error)

	// Update writes the draft only if the stored version still equals expectedVersion.
	// Returns ErrDraftVersionMismatch otherwise.
	Update(ctx context.Context, draft *entity.SurveyDraft, expectedVersion int64) error

	// DetachFamily clears the family link of every draft pointing at familyID.
	DetachFamily(ctx context.Context, familyID int64) (int64, error)
}
