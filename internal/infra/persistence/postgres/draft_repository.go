package postgres

import (
	"context"
	"encoding/json"

	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// draftRepository implements the repository.DraftRepository interface.
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository is the constructor for draftRepository.
func NewDraftRepository(db *gorm.DB) repository.DraftRepository {
	return &draftRepository{
		db: db,
	}
}

func (repo *draftRepository) Create(ctx context.Context, draft *entity.SurveyDraft) error {
	draftM, err := fromDraftDomain(draft)
	if err != nil {
		return err
	}

	if err := repo.db.WithContext(ctx).Create(draftM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create survey draft")
	}

	draft.CreatedAt = draftM.CreatedAt
	draft.UpdatedAt = draftM.UpdatedAt

	return nil
}

func (repo *draftRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.SurveyDraft, error) {
	var draftM model.SurveyDraftModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&draftM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrDraftNotFound
		}

		return nil, errors.Wrap(err, "failed to find survey draft by ID")
	}

	return toDraftDomain(&draftM)
}

func (repo *draftRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.SurveyDraft, error) {
	var draftModels []*model.SurveyDraftModel

	if err := repo.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&draftModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find survey drafts by owner")
	}

	drafts := make([]*entity.SurveyDraft, 0, len(draftModels))
	for _, draftM := range draftModels {
		draft, err := toDraftDomain(draftM)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}

	return drafts, nil
}

// Update is a compare-and-swap on the version column.
func (repo *draftRepository) Update(ctx context.Context, draft *entity.SurveyDraft, expectedVersion int64) error {
	draftM, err := fromDraftDomain(draft)
	if err != nil {
		return err
	}

	result := repo.db.WithContext(ctx).
		Model(&model.SurveyDraftModel{}).
		Where("id = ? AND version = ?", draft.ID, expectedVersion).
		Select("*").
		Omit("id", "owner_id", "created_at").
		Updates(draftM)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update survey draft")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.SurveyDraftModel{}).
		Where("id = ?", draft.ID).
		Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to check survey draft existence")
	}
	if count == 0 {
		return repository.ErrDraftNotFound
	}

	return repository.ErrDraftVersionMismatch
}

func (repo *draftRepository) DetachFamily(ctx context.Context, familyID int64) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SurveyDraftModel{}).
		Where("family_id = ?", familyID).
		Update("family_id", nil)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to detach survey drafts")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toDraftDomain(data *model.SurveyDraftModel) (*entity.SurveyDraft, error) {
	stages := []entity.DraftStage{}
	if len(data.Stages) > 0 {
		if err := json.Unmarshal(data.Stages, &stages); err != nil {
			return nil, errors.Wrap(err, "failed to decode draft stages")
		}
	}

	members := []entity.DraftMember{}
	if len(data.Members) > 0 {
		if err := json.Unmarshal(data.Members, &members); err != nil {
			return nil, errors.Wrap(err, "failed to decode draft members")
		}
	}

	return &entity.SurveyDraft{
		ID:           data.ID,
		OwnerID:      data.OwnerID,
		Stages:       stages,
		Members:      members,
		CurrentStage: data.CurrentStage,
		TotalStages:  data.TotalStages,
		Progress:     data.Progress,
		Version:      data.Version,
		Status:       entity.DraftStatus(data.Status),
		FamilyID:     data.FamilyID,
		Observations: data.Observations,
		CompletedAt:  data.CompletedAt,
		CancelledAt:  data.CancelledAt,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}, nil
}

func fromDraftDomain(data *entity.SurveyDraft) (*model.SurveyDraftModel, error) {
	stages, err := json.Marshal(nonNil(data.Stages))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode draft stages")
	}
	members, err := json.Marshal(nonNil(data.Members))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode draft members")
	}

	return &model.SurveyDraftModel{
		ID:           data.ID,
		OwnerID:      data.OwnerID,
		Stages:       datatypes.JSON(stages),
		Members:      datatypes.JSON(members),
		CurrentStage: data.CurrentStage,
		TotalStages:  data.TotalStages,
		Progress:     data.Progress,
		Version:      data.Version,
		Status:       string(data.Status),
		FamilyID:     data.FamilyID,
		Observations: data.Observations,
		CompletedAt:  data.CompletedAt,
		CancelledAt:  data.CancelledAt,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}, nil
}

// nonNil keeps empty collections encoded as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
