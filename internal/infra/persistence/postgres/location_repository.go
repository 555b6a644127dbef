package postgres

import (
	"context"

	"censo/internal/domain/entity"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type locationRepository struct {
	db *gorm.DB
}

// NewLocationRepository is the constructor for locationRepository.
func NewLocationRepository(db *gorm.DB) repository.LocationRepository {
	return &locationRepository{
		db: db,
	}
}

func (repo *locationRepository) FindByID(ctx context.Context, kind entity.LocationKind, id int64) (*entity.LocationRef, error) {
	table, ok := model.LocationTables[string(kind)]
	if !ok {
		return nil, errors.Errorf("unknown location kind: %s", kind)
	}

	var locationM model.LocationModel
	if err := repo.db.WithContext(ctx).
		Table(table).
		Where("id = ?", id).
		First(&locationM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrLocationNotFound
		}

		return nil, errors.Wrapf(err, "failed to find %s", kind)
	}

	return &entity.LocationRef{ID: locationM.ID, Name: locationM.Name}, nil
}
