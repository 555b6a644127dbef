package repository

import (
	"context"

	"censo/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrLocationNotFound is returned when a location catalog entry is not found.
var ErrLocationNotFound = errors.New("location not found")

// LocationRepository reads the location catalogs.
type LocationRepository interface {
	FindByID(ctx context.Context, kind entity.LocationKind, id int64) (*entity.LocationRef, error)
}
