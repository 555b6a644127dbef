package postgres

import (
	"context"

	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// associationRepository implements the repository.AssociationRepository interface
// over the three family join tables.
type associationRepository struct {
	db *gorm.DB
}

// NewAssociationRepository is the constructor for associationRepository.
func NewAssociationRepository(db *gorm.DB) repository.AssociationRepository {
	return &associationRepository{
		db: db,
	}
}

// Link inserts one join row into the table selected by the association kind.
func (repo *associationRepository) Link(ctx context.Context, association entity.FamilyAssociation) error {
	var row any
	switch association.Kind {
	case entity.AssociationDisposal:
		row = &model.FamilyDisposalMethodModel{FamilyID: association.FamilyID, DisposalMethodID: association.CatalogID}
	case entity.AssociationWater:
		row = &model.FamilyWaterSystemModel{FamilyID: association.FamilyID, WaterSystemID: association.CatalogID}
	case entity.AssociationHousing:
		row = &model.FamilyHousingTypeModel{FamilyID: association.FamilyID, HousingTypeID: association.CatalogID}
	default:
		return errors.Errorf("unknown association kind: %s", association.Kind)
	}

	if err := repo.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateAssociation
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to link family "+association.Kind.String())
	}

	return nil
}

// FindByFamily returns the family's rows from the join table selected by kind.
func (repo *associationRepository) FindByFamily(ctx context.Context, kind entity.AssociationKind, familyID int64) ([]entity.FamilyAssociation, error) {
	var (
		catalogIDs []int64
		query      = repo.db.WithContext(ctx).Where("family_id = ?", familyID)
		err        error
	)
	switch kind {
	case entity.AssociationDisposal:
		err = query.Model(&model.FamilyDisposalMethodModel{}).Order("disposal_method_id").Pluck("disposal_method_id", &catalogIDs).Error
	case entity.AssociationWater:
		err = query.Model(&model.FamilyWaterSystemModel{}).Order("water_system_id").Pluck("water_system_id", &catalogIDs).Error
	case entity.AssociationHousing:
		err = query.Model(&model.FamilyHousingTypeModel{}).Order("housing_type_id").Pluck("housing_type_id", &catalogIDs).Error
	default:
		return nil, errors.Errorf("unknown association kind: %s", kind)
	}
	if err != nil {
		if isUndefinedTable(err) {
			return nil, repository.ErrAssociationTableMissing
		}

		return nil, errors.Wrapf(err, "failed to find %s associations by family", kind)
	}

	associations := make([]entity.FamilyAssociation, 0, len(catalogIDs))
	for _, id := range catalogIDs {
		associations = append(associations, entity.FamilyAssociation{FamilyID: familyID, Kind: kind, CatalogID: id})
	}

	return associations, nil
}

// DeleteByFamily removes the family's rows from one join table.
func (repo *associationRepository) DeleteByFamily(ctx context.Context, kind entity.AssociationKind, familyID int64) (int64, error) {
	var target any
	switch kind {
	case entity.AssociationDisposal:
		target = &model.FamilyDisposalMethodModel{}
	case entity.AssociationWater:
		target = &model.FamilyWaterSystemModel{}
	case entity.AssociationHousing:
		target = &model.FamilyHousingTypeModel{}
	default:
		return 0, errors.Errorf("unknown association kind: %s", kind)
	}

	result := repo.db.WithContext(ctx).Where("family_id = ?", familyID).Delete(target)
	if result.Error != nil {
		if isUndefinedTable(result.Error) {
			return 0, repository.ErrAssociationTableMissing
		}

		return 0, errors.Wrapf(result.Error, "failed to delete %s associations", kind)
	}

	return result.RowsAffected, nil
}
