package impl

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"censo/internal/domain/constants"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDraft(t *testing.T, fixtures *surveyFixtures, familyID *int64) usecase.DraftRef {
	t.Helper()

	draft, err := fixtures.drafts.CreateDraft(context.Background(), &usecase.CreateDraftInput{
		OwnerID:  uuid.New(),
		FamilyID: familyID,
	})
	require.NoError(t, err)
	require.Equal(t, entity.DraftStatusDraft, draft.Status)
	require.Equal(t, int64(1), draft.Version)

	return usecase.DraftRef{OwnerID: draft.OwnerID, DraftID: draft.ID}
}

func saveStage(t *testing.T, fixtures *surveyFixtures, ref usecase.DraftRef, stage int, data map[string]any) *entity.SurveyDraft {
	t.Helper()

	draft, err := fixtures.drafts.SaveStage(context.Background(), &usecase.SaveStageInput{DraftRef: ref, Stage: stage, Data: data})
	require.NoError(t, err)

	return draft
}

func householdStages() map[int]map[string]any {
	return map[int]map[string]any{
		1: {"family": map[string]any{
			"surname": "Castro",
			"address": "Calle 5 # 10-20",
			"phone":   "3001112233",
		}},
		2: {
			"family":   map[string]any{"housingType": "Apartamento"},
			"disposal": map[string]any{"recoleccion": true},
		},
		3: {
			"water":        map[string]any{"acueducto": true, "pozo": true},
			"observations": "Visita en la tarde",
		},
	}
}

func TestDraftService_SaveStage(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ref := startDraft(t, fixtures, nil)

	draft := saveStage(t, fixtures, ref, 1, map[string]any{"family": map[string]any{"surname": "Castro"}})
	assert.Equal(t, entity.DraftStatusInProgress, draft.Status)
	assert.Equal(t, int64(2), draft.Version)
	assert.Equal(t, 33, draft.Progress)
	assert.Equal(t, 1, draft.CurrentStage)

	draft = saveStage(t, fixtures, ref, 3, map[string]any{"observations": ""})
	assert.Equal(t, 33, draft.Progress, "blank values do not count as progress")
	assert.Len(t, draft.Stages, 3)
	assert.Equal(t, []string{string(entity.DraftStatusDraft), string(entity.DraftStatusInProgress)}, fixtures.metrics.transitions)
}

func TestDraftService_SaveStage_Idempotent(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ref := startDraft(t, fixtures, nil)
	data := map[string]any{"family": map[string]any{"surname": "Castro", "phone": "3001112233"}}

	first := saveStage(t, fixtures, ref, 1, data)
	second := saveStage(t, fixtures, ref, 1, data)

	assert.Equal(t, first.Stages[0].Data, second.Stages[0].Data)
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Version+1, second.Version)
}

func TestDraftService_SaveStage_OutOfRange(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ref := startDraft(t, fixtures, nil)

	for _, stage := range []int{0, 4} {
		_, err := fixtures.drafts.SaveStage(context.Background(), &usecase.SaveStageInput{DraftRef: ref, Stage: stage, Data: map[string]any{"a": 1}})
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	}

	draft, err := fixtures.drafts.GetDraft(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), draft.Version)
}

func TestDraftService_VersionConflict(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ref := startDraft(t, fixtures, nil)
	saveStage(t, fixtures, ref, 1, map[string]any{"family": map[string]any{"surname": "Castro"}})

	stale := int64(1)
	ref.ExpectedVersion = &stale
	_, err := fixtures.drafts.SaveStage(context.Background(), &usecase.SaveStageInput{DraftRef: ref, Stage: 2, Data: map[string]any{"x": "y"}})
	require.ErrorIs(t, err, domainerrors.ErrVersionConflict)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]any{"currentVersion": int64(2)}, appErr.Details())

	current := int64(2)
	ref.ExpectedVersion = &current
	draft, err := fixtures.drafts.SaveStage(context.Background(), &usecase.SaveStageInput{DraftRef: ref, Stage: 2, Data: map[string]any{"x": "y"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), draft.Version)
}

func TestDraftService_OwnerIsolation(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ref := startDraft(t, fixtures, nil)

	other := usecase.DraftRef{OwnerID: uuid.New(), DraftID: ref.DraftID}
	_, err := fixtures.drafts.GetDraft(context.Background(), other)
	assert.ErrorIs(t, err, domainerrors.ErrDraftNotFound)

	_, err = fixtures.drafts.SaveStage(context.Background(), &usecase.SaveStageInput{DraftRef: other, Stage: 1, Data: map[string]any{"a": 1}})
	assert.ErrorIs(t, err, domainerrors.ErrDraftNotFound)

	drafts, err := fixtures.drafts.ListDrafts(context.Background(), other.OwnerID)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	drafts, err = fixtures.drafts.ListDrafts(context.Background(), ref.OwnerID)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestDraftService_CreateDraft_UnknownFamily(t *testing.T) {
	fixtures := createTestServices(t, 3)
	familyID := int64(99)

	_, err := fixtures.drafts.CreateDraft(context.Background(), &usecase.CreateDraftInput{OwnerID: uuid.New(), FamilyID: &familyID})
	assert.ErrorIs(t, err, domainerrors.ErrSurveyNotFound)
}

func TestDraftService_Complete_RequiresStages(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ref := startDraft(t, fixtures, nil)
	stages := householdStages()
	saveStage(t, fixtures, ref, 1, stages[1])
	saveStage(t, fixtures, ref, 3, stages[3])

	_, err := fixtures.drafts.Complete(context.Background(), ref)
	require.ErrorIs(t, err, domainerrors.ErrDraftIncomplete)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]any{"missingStages": []int{2}}, appErr.Details())

	draft, err := fixtures.drafts.GetDraft(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, entity.DraftStatusInProgress, draft.Status)

	families, _, _ := fixtures.store.Counts()
	assert.Zero(t, families)
}

func TestDraftService_Complete_WritesNewFamily(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()
	ref := startDraft(t, fixtures, nil)
	for n, data := range householdStages() {
		saveStage(t, fixtures, ref, n, data)
	}

	living, err := fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{
		"firstName": "Sofía", "birthDate": "1994-07-30", "sex": "f",
	}})
	require.NoError(t, err)
	_, err = fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{
		"firstName": "Alberto", "kind": "deceased", "wasFather": true, "anniversary": "2015-02-11",
	}})
	require.NoError(t, err)
	removed, err := fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{"firstName": "Borrado"}})
	require.NoError(t, err)
	_, err = fixtures.drafts.DeleteMember(ctx, &usecase.MemberRefInput{DraftRef: ref, MemberID: removed.Member.ID})
	require.NoError(t, err)
	require.Len(t, living.Draft.Members, 1)

	completion, err := fixtures.drafts.Complete(ctx, ref)
	require.NoError(t, err)

	assert.False(t, completion.Reused)
	assert.Equal(t, entity.DraftStatusCompleted, completion.Draft.Status)
	require.NotNil(t, completion.Draft.CompletedAt)
	require.NotNil(t, completion.Draft.FamilyID)
	assert.Equal(t, completion.Survey.FamilyID, *completion.Draft.FamilyID)
	assert.Equal(t, 1, completion.Survey.MembersCreated)
	assert.Equal(t, 1, completion.Survey.DeceasedCreated)

	view, err := fixtures.surveys.GetSurvey(ctx, completion.Survey.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, "Castro", view.Surname)
	assert.Equal(t, "Apartamento", view.HousingType)
	assert.Equal(t, "Visita en la tarde", view.Observations)
	assert.Len(t, view.Utilities.Disposal, 1)
	assert.Len(t, view.Utilities.Water, 2)
	require.Len(t, view.Members, 1)
	assert.Equal(t, "Sofía", view.Members[0].FirstName)
	require.Len(t, view.Deceased, 1)
	assert.True(t, view.Deceased[0].WasFather)

	_, err = fixtures.drafts.SaveStage(ctx, &usecase.SaveStageInput{DraftRef: ref, Stage: 1, Data: map[string]any{"a": 1}})
	assert.ErrorIs(t, err, domainerrors.ErrDraftClosed)
	_, err = fixtures.drafts.Complete(ctx, ref)
	assert.ErrorIs(t, err, domainerrors.ErrDraftClosed)

	assert.Equal(t, []string{constants.EventSurveyCompleted}, fixtures.publisher.publishedTypes())
	assert.Equal(t, 1, fixtures.metrics.created)
}

func TestDraftService_Complete_DuplicateFamily(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()

	existing := newSurveyInput("Castro")
	existing.Family.Address = "Calle 5 # 10-20"
	existing.Family.Phone = "3001112233"
	created, err := fixtures.surveys.CreateSurvey(ctx, existing)
	require.NoError(t, err)
	families, persons, associations := fixtures.store.Counts()

	ref := startDraft(t, fixtures, nil)
	for n, data := range householdStages() {
		saveStage(t, fixtures, ref, n, data)
	}

	_, err = fixtures.drafts.Complete(ctx, ref)
	require.ErrorIs(t, err, domainerrors.ErrDuplicateFamily)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, created.FamilyID, details["existingFamilyId"])

	f, p, a := fixtures.store.Counts()
	assert.Equal(t, families, f)
	assert.Equal(t, persons, p)
	assert.Equal(t, associations, a)

	draft, err := fixtures.drafts.GetDraft(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, entity.DraftStatusInProgress, draft.Status)
	assert.Nil(t, draft.FamilyID)
}

func TestDraftService_Complete_ResurveysLinkedFamily(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()

	created, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	ref := startDraft(t, fixtures, &created.FamilyID)
	for n := 1; n <= 3; n++ {
		saveStage(t, fixtures, ref, n, map[string]any{"revisado": true})
	}

	completion, err := fixtures.drafts.Complete(ctx, ref)
	require.NoError(t, err)
	assert.True(t, completion.Reused)
	assert.Equal(t, created.FamilyID, completion.Survey.FamilyID)
	assert.Equal(t, created.FamilyCode, completion.Survey.FamilyCode)

	families, _, _ := fixtures.store.Counts()
	assert.Equal(t, 1, families)

	view, err := fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.SurveyCount)
	assert.Equal(t, 1, fixtures.metrics.created)
}

func TestDraftService_Complete_ResurveyStoresInterviewData(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()

	created, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	ref := startDraft(t, fixtures, &created.FamilyID)
	saveStage(t, fixtures, ref, 1, map[string]any{"family": map[string]any{"address": "Vereda El Porvenir, casa 9"}})
	saveStage(t, fixtures, ref, 2, map[string]any{"water": map[string]any{"pozo": true}})
	saveStage(t, fixtures, ref, 3, map[string]any{"observations": "Segunda visita"})
	_, err = fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{
		"firstName": "Lucía", "birthDate": "2023-01-15", "sex": "f",
	}})
	require.NoError(t, err)
	// Already registered by the first interview.
	_, err = fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{
		"firstName": "María", "identificationNumber": "52123456",
	}})
	require.NoError(t, err)

	completion, err := fixtures.drafts.Complete(ctx, ref)
	require.NoError(t, err)
	assert.True(t, completion.Reused)
	assert.Equal(t, 1, completion.Survey.MembersCreated)
	assert.Zero(t, completion.Survey.DeceasedCreated)
	require.Len(t, completion.Survey.SkippedMembers, 1)
	assert.Equal(t, 1, completion.Survey.SkippedMembers[0].Index)
	assert.Equal(t, "identification number already registered", completion.Survey.SkippedMembers[0].Reason)

	families, persons, _ := fixtures.store.Counts()
	assert.Equal(t, 1, families)
	assert.Equal(t, 4, persons)

	view, err := fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, "Gómez", view.Surname)
	assert.Equal(t, "Vereda El Porvenir, casa 9", view.Address)
	assert.Equal(t, "Familia receptiva\nSegunda visita", view.Observations)
	assert.Equal(t, 2, view.SurveyCount)
	assert.Equal(t, 3, view.HouseholdSize)
	require.Len(t, view.Members, 3)
	assert.Equal(t, "Lucía", view.Members[2].FirstName)
	require.Len(t, view.Utilities.Water, 1)
	assert.Equal(t, "Pozo", view.Utilities.Water[0].Label)
	assert.Len(t, view.Utilities.Disposal, 2)
	assert.Len(t, view.Utilities.Housing, 1)
}

func TestDraftService_Complete_ResurveyIdentityTaken(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()

	gomez, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)
	rojas, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Rojas"))
	require.NoError(t, err)

	ref := startDraft(t, fixtures, &rojas.FamilyID)
	saveStage(t, fixtures, ref, 1, map[string]any{"family": map[string]any{"surname": "Gómez"}})
	saveStage(t, fixtures, ref, 2, map[string]any{"revisado": true})
	saveStage(t, fixtures, ref, 3, map[string]any{"revisado": true})

	_, err = fixtures.drafts.Complete(ctx, ref)
	require.ErrorIs(t, err, domainerrors.ErrDuplicateFamily)
	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, gomez.FamilyID, details["existingFamilyId"])

	view, err := fixtures.surveys.GetSurvey(ctx, rojas.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, "Rojas", view.Surname)
	assert.Equal(t, 1, view.SurveyCount)

	draft, err := fixtures.drafts.GetDraft(ctx, ref)
	require.NoError(t, err)
	assert.False(t, draft.Status.IsTerminal())
	assert.Equal(t, 1, fixtures.metrics.duplicates)
}

func TestDraftService_Cancel(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()
	ref := startDraft(t, fixtures, nil)

	draft, err := fixtures.drafts.Cancel(ctx, &usecase.CancelDraftInput{DraftRef: ref, Reason: "   "})
	require.NoError(t, err)
	assert.Equal(t, entity.DraftStatusCancelled, draft.Status)
	require.NotNil(t, draft.CancelledAt)
	assert.True(t, strings.HasSuffix(draft.Observations, "cancelado: "+defaultCancelReason))

	_, err = fixtures.drafts.Cancel(ctx, &usecase.CancelDraftInput{DraftRef: ref, Reason: "otra vez"})
	assert.ErrorIs(t, err, domainerrors.ErrDraftClosed)
	_, err = fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{"firstName": "Ana"}})
	assert.ErrorIs(t, err, domainerrors.ErrDraftClosed)
}

func TestDraftService_ClosedBeforeVersionCheck(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()
	ref := startDraft(t, fixtures, nil)

	_, err := fixtures.drafts.Cancel(ctx, &usecase.CancelDraftInput{DraftRef: ref})
	require.NoError(t, err)

	stale := int64(1)
	ref.ExpectedVersion = &stale
	_, err = fixtures.drafts.SaveStage(ctx, &usecase.SaveStageInput{DraftRef: ref, Stage: 1, Data: map[string]any{"a": 1}})
	assert.ErrorIs(t, err, domainerrors.ErrDraftClosed)
}

func TestDraftService_MemberLifecycle(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()
	ref := startDraft(t, fixtures, nil)

	created, err := fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, Data: map[string]any{"firstName": "Ana"}})
	require.NoError(t, err)
	memberID := created.Member.ID
	assert.NotEqual(t, uuid.Nil, memberID)

	updated, err := fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, MemberID: &memberID, Data: map[string]any{"firstName": "Ana María"}})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Member.Data["firstName"])
	require.Len(t, updated.Draft.Members, 1)

	deleted, err := fixtures.drafts.DeleteMember(ctx, &usecase.MemberRefInput{DraftRef: ref, MemberID: memberID})
	require.NoError(t, err)
	assert.True(t, deleted.Member.Deleted)
	assert.NotNil(t, deleted.Member.DeletedAt)
	assert.Empty(t, deleted.Draft.ActiveMembers())

	_, err = fixtures.drafts.SaveMember(ctx, &usecase.SaveMemberInput{DraftRef: ref, MemberID: &memberID, Data: map[string]any{"firstName": "Otra"}})
	assert.ErrorIs(t, err, domainerrors.ErrMemberNotFound)

	restored, err := fixtures.drafts.RestoreMember(ctx, &usecase.MemberRefInput{DraftRef: ref, MemberID: memberID})
	require.NoError(t, err)
	assert.False(t, restored.Member.Deleted)
	assert.Nil(t, restored.Member.DeletedAt)
	assert.Equal(t, "Ana María", restored.Member.Data["firstName"])
	assert.Len(t, restored.Draft.ActiveMembers(), 1)

	_, err = fixtures.drafts.DeleteMember(ctx, &usecase.MemberRefInput{DraftRef: ref, MemberID: uuid.New()})
	assert.ErrorIs(t, err, domainerrors.ErrMemberNotFound)
}

func TestDraftService_AutoSave(t *testing.T) {
	fixtures := createTestServices(t, 3)
	ctx := context.Background()
	ref := startDraft(t, fixtures, nil)

	_, err := fixtures.drafts.GetAutoSave(ctx, ref)
	assert.ErrorIs(t, err, domainerrors.ErrAutoSaveNotFound)

	_, err = fixtures.drafts.SaveAutoSave(ctx, ref, json.RawMessage(`{"screen":`))
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	payload := json.RawMessage(`{"screen":2,"fields":{"surname":"Cas"}}`)
	saved, err := fixtures.drafts.SaveAutoSave(ctx, ref, payload)
	require.NoError(t, err)
	assert.Equal(t, ref.DraftID, saved.DraftID)

	loaded, err := fixtures.drafts.GetAutoSave(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(loaded.Payload))

	_, err = fixtures.drafts.GetAutoSave(ctx, usecase.DraftRef{OwnerID: uuid.New(), DraftID: ref.DraftID})
	assert.ErrorIs(t, err, domainerrors.ErrDraftNotFound)

	_, err = fixtures.drafts.Cancel(ctx, &usecase.CancelDraftInput{DraftRef: ref, Reason: "duplicada"})
	require.NoError(t, err)

	_, err = fixtures.drafts.GetAutoSave(ctx, ref)
	assert.ErrorIs(t, err, domainerrors.ErrAutoSaveNotFound)
	_, err = fixtures.drafts.SaveAutoSave(ctx, ref, payload)
	assert.ErrorIs(t, err, domainerrors.ErrDraftClosed)
}
