package repository

import (
	"context"

	"censo/internal/domain/entity"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateIdentification is returned when the identification number is already on file.
	ErrDuplicateIdentification = errors.New("identification number already exists")
	// ErrInvalidPersonReference is returned when the owning family does not exist.
	ErrInvalidPersonReference = errors.New("person references a missing family")
)

// PersonRepository defines the interface for household member persistence.
type PersonRepository interface {
	// Create persists a living or deceased person.
	Create(ctx context.Context, person *entity.Person) error

	// ExistsByIdentification reports whether any person holds this identification number.
	ExistsByIdentification(ctx context.Context, number string) (bool, error)

	// FindByFamily returns every person of the family ordered by creation.
	FindByFamily(ctx context.Context, familyID int64) ([]*entity.Person, error)

	// CountByFamily returns the living and deceased member counts of a family.
	CountByFamily(ctx context.Context, familyID int64) (living, deceased int64, err error)

	// DeleteByFamily removes every person of the family.
	DeleteByFamily(ctx context.Context, familyID int64) (int64, error)
}
