package postgres

import (
	"context"
	"strings"

	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// personRepository implements the repository.PersonRepository interface.
type personRepository struct {
	db *gorm.DB
}

// NewPersonRepository is the constructor for personRepository.
func NewPersonRepository(db *gorm.DB) repository.PersonRepository {
	return &personRepository{
		db: db,
	}
}

// Create persists a living or deceased person.
func (repo *personRepository) Create(ctx context.Context, person *entity.Person) error {
	personM := fromPersonDomain(person)

	if err := repo.db.WithContext(ctx).Omit("Family").Create(personM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicateIdentification
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrInvalidPersonReference
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required person information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create person")
	}

	person.ID = personM.ID
	person.CreatedAt = personM.CreatedAt
	person.UpdatedAt = personM.UpdatedAt

	return nil
}

func (repo *personRepository) ExistsByIdentification(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.PersonModel{}).
		Where("identification_number = ?", number).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check identification number")
	}

	return count > 0, nil
}

// FindByFamily returns every person of the family in insertion order.
func (repo *personRepository) FindByFamily(ctx context.Context, familyID int64) ([]*entity.Person, error) {
	var personModels []*model.PersonModel

	if err := repo.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("id ASC").
		Find(&personModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find persons by family")
	}

	persons := make([]*entity.Person, 0, len(personModels))
	for _, personM := range personModels {
		persons = append(persons, toPersonDomain(personM))
	}

	return persons, nil
}

// CountByFamily counts legacy prefix-only deceased rows as deceased.
func (repo *personRepository) CountByFamily(ctx context.Context, familyID int64) (living, deceased int64, err error) {
	var counts struct {
		Living   int64
		Deceased int64
	}

	if err := repo.db.WithContext(ctx).
		Model(&model.PersonModel{}).
		Select(
			"COUNT(*) FILTER (WHERE NOT is_deceased AND identification_number NOT LIKE ?) AS living, "+
				"COUNT(*) FILTER (WHERE is_deceased OR identification_number LIKE ?) AS deceased",
			entity.DeceasedIDPrefix+"-%", entity.DeceasedIDPrefix+"-%",
		).
		Where("family_id = ?", familyID).
		Scan(&counts).Error; err != nil {
		return 0, 0, errors.Wrap(err, "failed to count persons by family")
	}

	return counts.Living, counts.Deceased, nil
}

func (repo *personRepository) DeleteByFamily(ctx context.Context, familyID int64) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Delete(&model.PersonModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete persons by family")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toPersonDomain(data *model.PersonModel) *entity.Person {
	if data == nil {
		return nil
	}

	person := &entity.Person{
		ID:                   data.ID,
		FamilyID:             data.FamilyID,
		Kind:                 entity.PersonKindLiving,
		FirstName:            data.FirstName,
		MiddleName:           data.MiddleName,
		FirstSurname:         data.FirstSurname,
		SecondSurname:        data.SecondSurname,
		BirthDate:            data.BirthDate,
		Phone:                data.Phone,
		Email:                data.Email,
		IdentificationTypeID: data.IdentificationTypeID,
		IdentificationNumber: data.IdentificationNumber,
		SexID:                data.SexID,
		CivilStatusID:        data.CivilStatusID,
		EducationLevelID:     data.EducationLevelID,
		LeadershipRole:       data.LeadershipRole,
		ShirtSize:            data.ShirtSize,
		PantsSize:            data.PantsSize,
		ShoeSize:             data.ShoeSize,
		HealthNeeds:          data.HealthNeeds,
		CreatedAt:            data.CreatedAt,
		UpdatedAt:            data.UpdatedAt,
	}

	switch {
	case data.IsDeceased:
		person.Kind = entity.PersonKindDeceased
		person.Deceased = &entity.DeceasedDetails{
			Anniversary: data.DeathAnniversary,
			WasFather:   data.WasFather,
			WasMother:   data.WasMother,
			Cause:       data.CauseOfDeath,
		}
	case strings.HasPrefix(data.IdentificationNumber, entity.DeceasedIDPrefix+"-"):
		// Legacy row: the details are still packed in health_needs.
		person.Kind = entity.PersonKindDeceased
	}

	return person
}

func fromPersonDomain(data *entity.Person) *model.PersonModel {
	if data == nil {
		return nil
	}

	personM := &model.PersonModel{
		ID:                   data.ID,
		FamilyID:             data.FamilyID,
		FirstName:            data.FirstName,
		MiddleName:           data.MiddleName,
		FirstSurname:         data.FirstSurname,
		SecondSurname:        data.SecondSurname,
		BirthDate:            data.BirthDate,
		Phone:                data.Phone,
		Email:                data.Email,
		IdentificationTypeID: data.IdentificationTypeID,
		IdentificationNumber: data.IdentificationNumber,
		SexID:                data.SexID,
		CivilStatusID:        data.CivilStatusID,
		EducationLevelID:     data.EducationLevelID,
		LeadershipRole:       data.LeadershipRole,
		ShirtSize:            data.ShirtSize,
		PantsSize:            data.PantsSize,
		ShoeSize:             data.ShoeSize,
		HealthNeeds:          data.HealthNeeds,
		IsDeceased:           data.Kind == entity.PersonKindDeceased,
		CreatedAt:            data.CreatedAt,
		UpdatedAt:            data.UpdatedAt,
	}
	if data.Deceased != nil {
		personM.DeathAnniversary = data.Deceased.Anniversary
		personM.WasFather = data.Deceased.WasFather
		personM.WasMother = data.Deceased.WasMother
		personM.CauseOfDeath = data.Deceased.Cause
	}

	return personM
}
