package postgres

import (
	"context"
	"strings"
	"time"

	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

const familyIdentityConstraint = "uq_families_identity"

// familyRepository implements the repository.FamilyRepository interface.
type familyRepository struct {
	db *gorm.DB
}

// NewFamilyRepository is the constructor for familyRepository.
func NewFamilyRepository(db *gorm.DB) repository.FamilyRepository {
	return &familyRepository{
		db: db,
	}
}

// Create persists a new family. The unique index on the identity triple is authoritative.
func (repo *familyRepository) Create(ctx context.Context, family *entity.Family) error {
	familyM := fromFamilyDomain(family)

	if err := repo.db.WithContext(ctx).Create(familyM).Error; err != nil {
		if isConstraintViolationOn(err, familyIdentityConstraint) {
			return repository.ErrDuplicateFamily
		}
		if isNotNullConstraintViolation(err) || isCheckConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required family information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create family")
	}

	family.ID = familyM.ID
	family.CreatedAt = familyM.CreatedAt
	family.UpdatedAt = familyM.UpdatedAt

	return nil
}

// FindByID retrieves a family by its identifier.
func (repo *familyRepository) FindByID(ctx context.Context, id int64) (*entity.Family, error) {
	var familyM model.FamilyModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&familyM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFamilyNotFound
		}

		return nil, errors.Wrap(err, "failed to find family by ID")
	}

	return toFamilyDomain(&familyM), nil
}

// FindByIdentity reads from the primary so a just-committed household is never missed on a lagging replica.
func (repo *familyRepository) FindByIdentity(ctx context.Context, surname, phone, address string) (*entity.Family, error) {
	var familyM model.FamilyModel

	if err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("surname = ? AND phone = ? AND address = ?", surname, phone, address).
		First(&familyM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFamilyNotFound
		}

		return nil, errors.Wrap(err, "failed to find family by identity")
	}

	return toFamilyDomain(&familyM), nil
}

// Update rewrites the profile columns of an existing family.
func (repo *familyRepository) Update(ctx context.Context, family *entity.Family) error {
	familyM := fromFamilyDomain(family)

	result := repo.db.WithContext(ctx).
		Model(&model.FamilyModel{}).
		Where("id = ?", family.ID).
		Select("surname", "address", "phone", "email", "housing_type_label",
			"sector_id", "vereda_id", "municipality_id", "parish_id", "observations", "updated_at").
		Updates(familyM)
	if result.Error != nil {
		if isConstraintViolationOn(result.Error, familyIdentityConstraint) {
			return repository.ErrDuplicateFamily
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update family")
	}
	if result.RowsAffected == 0 {
		return repository.ErrFamilyNotFound
	}

	return nil
}

// UpdateHouseholdSize stores the derived living-member count.
func (repo *familyRepository) UpdateHouseholdSize(ctx context.Context, id int64, size int) error {
	result := repo.db.WithContext(ctx).
		Model(&model.FamilyModel{}).
		Where("id = ?", id).
		Update("household_size", size)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update household size")
	}
	if result.RowsAffected == 0 {
		return repository.ErrFamilyNotFound
	}

	return nil
}

// RecordSurvey marks a finished interview on the family row.
func (repo *familyRepository) RecordSurvey(ctx context.Context, id int64, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.FamilyModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"survey_status":  string(entity.SurveyStatusCompleted),
			"survey_count":   gorm.Expr("survey_count + 1"),
			"last_survey_at": at,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to record survey")
	}
	if result.RowsAffected == 0 {
		return repository.ErrFamilyNotFound
	}

	return nil
}

// List returns one page of families, newest first, and the total number of matches.
func (repo *familyRepository) List(ctx context.Context, filter repository.FamilyFilter) ([]*entity.Family, int64, error) {
	query := repo.db.WithContext(ctx).Model(&model.FamilyModel{})
	if filter.SectorID != nil {
		query = query.Where("sector_id = ?", *filter.SectorID)
	}
	if filter.MunicipalityID != nil {
		query = query.Where("municipality_id = ?", *filter.MunicipalityID)
	}
	if surname := strings.TrimSpace(filter.Surname); surname != "" {
		query = query.Where("LOWER(surname) LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(surname))+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count families")
	}

	var familyModels []*model.FamilyModel
	if err := query.
		Order("id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&familyModels).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to list families")
	}

	families := make([]*entity.Family, 0, len(familyModels))
	for _, familyM := range familyModels {
		families = append(families, toFamilyDomain(familyM))
	}

	return families, total, nil
}

// Delete removes the family row.
func (repo *familyRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.FamilyModel{})
	if result.Error != nil {
		if isForeignKeyConstraintViolation(result.Error) {
			return 0, domainerrors.NewDatabaseExecuteError(result.Error, "family still has dependent rows")
		}

		return 0, errors.Wrap(result.Error, "failed to delete family")
	}

	return result.RowsAffected, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// --- Mapper Functions ---

func toFamilyDomain(data *model.FamilyModel) *entity.Family {
	if data == nil {
		return nil
	}

	return &entity.Family{
		ID:               data.ID,
		Code:             data.Code,
		Surname:          data.Surname,
		Address:          data.Address,
		Phone:            data.Phone,
		Email:            data.Email,
		HouseholdSize:    data.HouseholdSize,
		HousingTypeLabel: data.HousingTypeLabel,
		SurveyStatus:     entity.SurveyStatus(data.SurveyStatus),
		SurveyCount:      data.SurveyCount,
		LastSurveyAt:     data.LastSurveyAt,
		SectorID:         data.SectorID,
		VeredaID:         data.VeredaID,
		MunicipalityID:   data.MunicipalityID,
		ParishID:         data.ParishID,
		Observations:     data.Observations,
		CreatedBy:        data.CreatedBy,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
}

func fromFamilyDomain(data *entity.Family) *model.FamilyModel {
	if data == nil {
		return nil
	}

	status := data.SurveyStatus
	if status == "" {
		status = entity.SurveyStatusPending
	}

	return &model.FamilyModel{
		ID:               data.ID,
		Code:             data.Code,
		Surname:          data.Surname,
		Address:          data.Address,
		Phone:            data.Phone,
		Email:            data.Email,
		HouseholdSize:    data.HouseholdSize,
		HousingTypeLabel: data.HousingTypeLabel,
		SurveyStatus:     string(status),
		SurveyCount:      data.SurveyCount,
		LastSurveyAt:     data.LastSurveyAt,
		SectorID:         data.SectorID,
		VeredaID:         data.VeredaID,
		MunicipalityID:   data.MunicipalityID,
		ParishID:         data.ParishID,
		Observations:     data.Observations,
		CreatedBy:        data.CreatedBy,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
}
