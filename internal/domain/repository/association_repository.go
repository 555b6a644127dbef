package repository

import (
	"context"

	"censo/internal/domain/entity"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateAssociation is returned when the (family, catalog item) pair already exists.
	ErrDuplicateAssociation = errors.New("family association already exists")
	// ErrAssociationTableMissing is returned when the join table is not defined in storage.
	// On postgres the surrounding transaction must be rolled back to a savepoint.
	ErrAssociationTableMissing = errors.New("association table does not exist")
)

// AssociationRepository manages the family-to-catalog join tables.
type AssociationRepository interface {
	// Link inserts one join row.
	Link(ctx context.Context, association entity.FamilyAssociation) error

	// FindByFamily returns the family's rows from one join table, ordered by catalog id.
	// Returns ErrAssociationTableMissing when the table is not defined.
	FindByFamily(ctx context.Context, kind entity.AssociationKind, familyID int64) ([]entity.FamilyAssociation, error)

	// DeleteByFamily removes the family's rows from one join table.
	// Returns ErrAssociationTableMissing when the table is not defined.
	DeleteByFamily(ctx context.Context, kind entity.AssociationKind, familyID int64) (int64, error)
}
