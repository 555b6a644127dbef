package postgres

import (
	"context"
	"slices"

	"censo/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Migrate creates or updates the survey tables, the join tables and the location catalogs.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&model.FamilyModel{},
		&model.PersonModel{},
		&model.FamilyDisposalMethodModel{},
		&model.FamilyWaterSystemModel{},
		&model.FamilyHousingTypeModel{},
		&model.SurveyDraftModel{},
		&model.SurveyAuditLogModel{},
	); err != nil {
		return errors.Wrap(err, "failed to migrate survey tables")
	}

	tables := make([]string, 0, len(model.LocationTables))
	for _, table := range model.LocationTables {
		tables = append(tables, table)
	}
	slices.Sort(tables)

	for _, table := range tables {
		if err := db.WithContext(ctx).Table(table).AutoMigrate(&model.LocationModel{}); err != nil {
			return errors.Wrapf(err, "failed to migrate location table %s", table)
		}
	}

	return nil
}
