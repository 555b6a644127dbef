// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"censo/internal/domain/entity"

	"github.com/pkg/errors"
)

// Domain-specific errors for family persistence.
var (
	// ErrFamilyNotFound is returned when a family is not found.
	ErrFamilyNotFound = errors.New("family not found")
	// ErrDuplicateFamily is returned when the (surname, phone, address) triple is already registered.
	ErrDuplicateFamily = errors.New("family already exists")
)

// FamilyFilter narrows a family listing. Zero values mean no filter.
type FamilyFilter struct {
	SectorID       *int64
	MunicipalityID *int64
	Surname        string // Case-insensitive prefix.
	Offset         int
	Limit          int
}

// FamilyRepository defines the interface for family-related database operations.
type FamilyRepository interface {
	// Create persists a new family and fills its generated fields.
	// Returns ErrDuplicateFamily when storage rejects the identity triple.
	Create(ctx context.Context, family *entity.Family) error

	// FindByID retrieves a family by its identifier.
	FindByID(ctx context.Context, id int64) (*entity.Family, error)

	// FindByIdentity retrieves the family with exactly this surname, phone and address.
	FindByIdentity(ctx context.Context, surname, phone, address string) (*entity.Family, error)

	// Update stores the household profile (identity, contact, location, observations).
	// Returns ErrDuplicateFamily when the new identity triple belongs to another family.
	Update(ctx context.Context, family *entity.Family) error

	// UpdateHouseholdSize stores the derived living-member count.
	UpdateHouseholdSize(ctx context.Context, id int64, size int) error

	// RecordSurvey marks a finished interview: status completed, count incremented, last date set.
	RecordSurvey(ctx context.Context, id int64, at time.Time) error

	// List returns one page of families matching the filter plus the total match count.
	List(ctx context.Context, filter FamilyFilter) ([]*entity.Family, int64, error)

	// Delete removes the family row and reports how many rows were affected.
	Delete(ctx context.Context, id int64) (int64, error)
}
