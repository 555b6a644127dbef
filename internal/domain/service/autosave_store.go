package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrAutoSaveNotFound is returned when a draft has no auto-save payload, or it expired.
var ErrAutoSaveNotFound = errors.New("auto-save not found")

// AutoSave is an opaque client-side form snapshot kept between stage saves.
type AutoSave struct {
	DraftID uuid.UUID       `json:"draftId"`
	Payload json.RawMessage `json:"payload"`
	SavedAt time.Time       `json:"savedAt"`
}

// AutoSaveStore keeps the latest auto-save payload per draft for a limited time.
type AutoSaveStore interface {
	Save(ctx context.Context, snapshot *AutoSave) error
	Load(ctx context.Context, draftID uuid.UUID) (*AutoSave, error)
	Delete(ctx context.Context, draftID uuid.UUID) error
}
