package usecase

import (
	"context"
	"encoding/json"

	"censo/internal/domain/entity"
	"censo/internal/domain/service"

	"github.com/google/uuid"
)

// DraftRef addresses one draft on behalf of its owner. ExpectedVersion, when set,
// must equal the stored version or the mutation fails with a version conflict.
type DraftRef struct {
	OwnerID         uuid.UUID
	DraftID         uuid.UUID
	ExpectedVersion *int64
}

// CreateDraftInput starts a staged survey. FamilyID links the draft to an existing
// household so completion re-surveys it instead of registering a new one.
type CreateDraftInput struct {
	OwnerID  uuid.UUID `json:"-"`
	FamilyID *int64    `json:"familyId,omitempty"`
}

// SaveStageInput merges one form screen into a draft.
type SaveStageInput struct {
	DraftRef
	Stage int
	Data  map[string]any
}

// CancelDraftInput abandons a draft.
type CancelDraftInput struct {
	DraftRef
	Reason string
}

// SaveMemberInput creates a draft member, or replaces its data when MemberID is set.
type SaveMemberInput struct {
	DraftRef
	MemberID *uuid.UUID
	Data     map[string]any
}

// MemberRefInput addresses one draft member.
type MemberRefInput struct {
	DraftRef
	MemberID uuid.UUID
}

// DraftMemberResult is the draft after a member mutation together with the affected member.
type DraftMemberResult struct {
	Draft  *entity.SurveyDraft `json:"draft"`
	Member entity.DraftMember  `json:"member"`
}

// CompletionResult is returned when a draft is materialized into a family.
type CompletionResult struct {
	Draft  *entity.SurveyDraft `json:"draft"`
	Survey *SurveyResult       `json:"survey"`
	// Reused reports that the linked family was re-surveyed instead of created.
	Reused bool `json:"reused"`
}

// DraftUsecase defines the stage-based survey workflow.
type DraftUsecase interface {
	// CreateDraft starts an empty draft.
	CreateDraft(ctx context.Context, input *CreateDraftInput) (*entity.SurveyDraft, error)

	// GetDraft returns a draft owned by the caller.
	GetDraft(ctx context.Context, ref DraftRef) (*entity.SurveyDraft, error)

	// ListDrafts returns the caller's drafts, most recently updated first.
	ListDrafts(ctx context.Context, ownerID uuid.UUID) ([]*entity.SurveyDraft, error)

	// SaveStage merges stage data and recomputes progress.
	SaveStage(ctx context.Context, input *SaveStageInput) (*entity.SurveyDraft, error)

	// Complete materializes the draft into a family.
	Complete(ctx context.Context, ref DraftRef) (*CompletionResult, error)

	// Cancel abandons the draft and records the reason in its observations.
	Cancel(ctx context.Context, input *CancelDraftInput) (*entity.SurveyDraft, error)

	// SaveMember creates or updates a draft member.
	SaveMember(ctx context.Context, input *SaveMemberInput) (*DraftMemberResult, error)

	// DeleteMember soft-deletes a draft member.
	DeleteMember(ctx context.Context, input *MemberRefInput) (*DraftMemberResult, error)

	// RestoreMember undoes a soft delete.
	RestoreMember(ctx context.Context, input *MemberRefInput) (*DraftMemberResult, error)

	// SaveAutoSave stores an opaque client snapshot of the draft form.
	SaveAutoSave(ctx context.Context, ref DraftRef, payload json.RawMessage) (*service.AutoSave, error)

	// GetAutoSave returns the latest client snapshot.
	GetAutoSave(ctx context.Context, ref DraftRef) (*service.AutoSave, error)
}
