package impl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"censo/internal/domain/catalog"
	"censo/internal/domain/constants"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/infra/persistence/memory"
	"censo/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSurveyService_CreateSurvey(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	result, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	assert.Positive(t, result.FamilyID)
	assert.True(t, strings.HasPrefix(result.FamilyCode, "FAM-"))
	assert.Equal(t, 2, result.MembersCreated)
	assert.Equal(t, 1, result.DeceasedCreated)
	assert.Empty(t, result.SkippedMembers)
	assert.NotEmpty(t, result.TransactionRef)

	families, persons, associations := fixtures.store.Counts()
	assert.Equal(t, 1, families)
	assert.Equal(t, 3, persons)
	// Two disposal methods, one water system and the housing type.
	assert.Equal(t, 4, associations)

	assert.Equal(t, 1, fixtures.metrics.created)
	assert.Equal(t, []string{constants.EventSurveyCreated}, fixtures.publisher.publishedTypes())
}

func TestSurveyService_GetSurvey(t *testing.T) {
	sectorID := int64(7)
	fixtures := createTestServices(t, 6)
	fixtures.store.SeedLocation(entity.LocationSector, sectorID, "San Isidro")
	ctx := context.Background()

	input := newSurveyInput("Gómez")
	input.Family.SectorID = &sectorID
	created, err := fixtures.surveys.CreateSurvey(ctx, input)
	require.NoError(t, err)

	view, err := fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	require.NoError(t, err)

	assert.Equal(t, created.FamilyCode, view.Code)
	assert.Equal(t, "Gómez", view.Surname)
	assert.Equal(t, 2, view.HouseholdSize)
	assert.Equal(t, string(entity.SurveyStatusCompleted), view.SurveyStatus)
	assert.Equal(t, 1, view.SurveyCount)
	require.NotNil(t, view.LastSurveyAt)

	require.NotNil(t, view.Location.Sector)
	assert.Equal(t, "San Isidro", view.Location.Sector.Name)
	assert.Nil(t, view.Location.Municipality)

	require.Len(t, view.Members, 2)
	var maria usecase.MemberView
	for _, m := range view.Members {
		if m.FirstName == "María" {
			maria = m
		}
	}
	require.NotNil(t, maria.Sex)
	assert.Equal(t, "Femenino", maria.Sex.Label)
	require.NotNil(t, maria.BirthDate)
	assert.Equal(t, "1980-05-17", maria.BirthDate.Format("2006-01-02"))

	require.Len(t, view.Deceased, 1)
	assert.Equal(t, usecase.DeceasedSourceColumns, view.Deceased[0].Source)
	assert.True(t, view.Deceased[0].WasFather)
	assert.False(t, view.Deceased[0].RoleInferred)
	assert.True(t, strings.HasPrefix(view.Deceased[0].IdentificationNumber, entity.DeceasedIDPrefix+"-"))

	assert.Len(t, view.Utilities.Disposal, 2)
	require.Len(t, view.Utilities.Water, 1)
	assert.Equal(t, "Acueducto", view.Utilities.Water[0].Label)
	require.Len(t, view.Utilities.Housing, 1)
	assert.Equal(t, "Casa", view.Utilities.Housing[0].Label)
}

func TestSurveyService_GetSurvey_NotFound(t *testing.T) {
	fixtures := createTestServices(t, 6)

	_, err := fixtures.surveys.GetSurvey(context.Background(), 404)
	assert.ErrorIs(t, err, domainerrors.ErrSurveyNotFound)
}

func TestSurveyService_GetSurvey_BrokenLocationCatalog(t *testing.T) {
	sectorID, municipalityID := int64(3), int64(9)
	fixtures := createTestServices(t, 6, memory.WithBrokenLocationCatalog(entity.LocationMunicipality))
	fixtures.store.SeedLocation(entity.LocationSector, sectorID, "La Palma")
	fixtures.store.SeedLocation(entity.LocationMunicipality, municipalityID, "Fusagasugá")
	ctx := context.Background()

	input := newSurveyInput("Rojas")
	input.Family.SectorID = &sectorID
	input.Family.MunicipalityID = &municipalityID
	created, err := fixtures.surveys.CreateSurvey(ctx, input)
	require.NoError(t, err)

	view, err := fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	require.NoError(t, err)

	assert.Nil(t, view.Location.Municipality)
	require.NotNil(t, view.Location.Sector)
	assert.Equal(t, "La Palma", view.Location.Sector.Name)
	assert.Len(t, view.Members, 2)
}

func TestSurveyService_CreateSurvey_SkipsInvalidMember(t *testing.T) {
	fixtures := createTestServices(t, 6)

	input := newSurveyInput("Pérez")
	input.Deceased = nil
	input.Members = append(input.Members, usecase.MemberInput{FirstName: "Lucía", BirthDate: rawDate("2001-01-20")})
	// A numeric birth date is not a date string.
	input.Members[1].BirthDate = json.RawMessage(`19850312`)

	result, err := fixtures.surveys.CreateSurvey(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 2, result.MembersCreated)
	require.Len(t, result.SkippedMembers, 1)
	assert.Equal(t, 1, result.SkippedMembers[0].Index)
	assert.Equal(t, memberKindLiving, result.SkippedMembers[0].Kind)
	assert.True(t, strings.HasPrefix(result.SkippedMembers[0].Reason, "invalid birth date"))

	_, persons, _ := fixtures.store.Counts()
	assert.Equal(t, 2, persons)

	view, err := fixtures.surveys.GetSurvey(context.Background(), result.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.HouseholdSize)
}

func TestSurveyService_CreateSurvey_MemberSkipReasons(t *testing.T) {
	fixtures := createTestServices(t, 6, memory.WithPersonCreateHook(func(p *entity.Person) error {
		if p.FirstName == "Rechazado" {
			return errors.New("check constraint violated")
		}

		return nil
	}))
	ctx := context.Background()

	_, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	input := newSurveyInput("Martínez")
	input.Deceased = []usecase.DeceasedInput{
		{FirstName: "Futuro", Anniversary: rawDate("2999-01-01")},
	}
	input.Members = []usecase.MemberInput{
		// Same identification as María Gómez.
		{FirstName: "Ana", IdentificationNumber: "52123456"},
		{FirstName: "Rechazado"},
		{FirstName: "   "},
		{FirstName: "Luis"},
	}

	result, err := fixtures.surveys.CreateSurvey(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MembersCreated)
	assert.Equal(t, 0, result.DeceasedCreated)
	require.Len(t, result.SkippedMembers, 4)

	reasons := make(map[string]string)
	for _, skipped := range result.SkippedMembers {
		reasons[fmt.Sprintf("%s:%d", skipped.Kind, skipped.Index)] = skipped.Reason
	}
	assert.Equal(t, "identification number already registered", reasons["living:0"])
	assert.True(t, strings.HasPrefix(reasons["living:1"], "insert failed"))
	assert.Equal(t, "first name is required", reasons["living:2"])
	assert.Equal(t, "anniversary is in the future", reasons["deceased:0"])
}

func TestSurveyService_CreateSurvey_TemporaryIdentification(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	created, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	view, err := fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	require.NoError(t, err)

	for _, m := range view.Members {
		if m.FirstName == "Juan" {
			assert.True(t, strings.HasPrefix(m.IdentificationNumber, entity.TemporaryIDPrefix+"-"))

			continue
		}
		assert.Equal(t, "52123456", m.IdentificationNumber)
	}
}

func TestSurveyService_CreateSurvey_Validation(t *testing.T) {
	fixtures := createTestServices(t, 6)

	input := newSurveyInput("  ")
	input.Family.Phone = ""

	_, err := fixtures.surveys.CreateSurvey(context.Background(), input)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"family.surname", "family.phone"}, details["missingFields"])

	families, persons, associations := fixtures.store.Counts()
	assert.Zero(t, families+persons+associations)
}

func TestSurveyService_CreateSurvey_RejectsDuplicateFamily(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	first, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)
	families, persons, associations := fixtures.store.Counts()

	again := newSurveyInput("Gómez")
	again.Family.Surname = "  Gómez "
	_, err = fixtures.surveys.CreateSurvey(ctx, again)
	require.ErrorIs(t, err, domainerrors.ErrDuplicateFamily)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, first.FamilyID, details["existingFamilyId"])
	assert.Equal(t, first.FamilyCode, details["existingFamilyCode"])

	f, p, a := fixtures.store.Counts()
	assert.Equal(t, families, f)
	assert.Equal(t, persons, p)
	assert.Equal(t, associations, a)
	assert.Equal(t, 1, fixtures.metrics.duplicates)
	assert.Equal(t, []string{constants.EventSurveyCreated}, fixtures.publisher.publishedTypes())
}

func TestSurveyService_CreateSurvey_PublishFailureKeepsSurvey(t *testing.T) {
	fixtures := createTestServices(t, 6)
	fixtures.publisher.ExpectedCalls = nil
	fixtures.publisher.On("PublishSurveyEvent", mock.Anything, mock.Anything).Return(errors.New("topic unavailable"))

	result, err := fixtures.surveys.CreateSurvey(context.Background(), newSurveyInput("Gómez"))
	require.NoError(t, err)
	assert.Positive(t, result.FamilyID)

	families, _, _ := fixtures.store.Counts()
	assert.Equal(t, 1, families)
}

func TestSurveyService_ListSurveys(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	for _, surname := range []string{"Gómez", "Gaitán", "Rojas"} {
		input := newSurveyInput(surname)
		input.Members = input.Members[1:]
		_, err := fixtures.surveys.CreateSurvey(ctx, input)
		require.NoError(t, err)
	}

	page, err := fixtures.surveys.ListSurveys(ctx, usecase.SurveyListFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	// Newest first.
	assert.Equal(t, "Rojas", page.Items[0].Surname)
	assert.Equal(t, int64(1), page.Items[0].LivingMembers)
	assert.Equal(t, int64(1), page.Items[0].DeceasedMembers)

	page, err = fixtures.surveys.ListSurveys(ctx, usecase.SurveyListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Gómez", page.Items[0].Surname)

	page, err = fixtures.surveys.ListSurveys(ctx, usecase.SurveyListFilter{Surname: "g"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 20, page.Pagination.Limit)

	page, err = fixtures.surveys.ListSurveys(ctx, usecase.SurveyListFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Page)
}

func TestSurveyService_DeleteSurvey(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	created, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	draft, err := fixtures.drafts.CreateDraft(ctx, &usecase.CreateDraftInput{OwnerID: uuid.New(), FamilyID: &created.FamilyID})
	require.NoError(t, err)

	result, err := fixtures.surveys.DeleteSurvey(ctx, created.FamilyID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.PersonsRemoved)
	assert.Equal(t, int64(2), result.DisposalLinksRemoved)
	assert.Equal(t, int64(1), result.WaterLinksRemoved)
	assert.Equal(t, int64(1), result.HousingLinksRemoved)
	assert.Equal(t, int64(1), result.DraftsDetached)

	families, persons, associations := fixtures.store.Counts()
	assert.Zero(t, families)
	assert.Zero(t, persons)
	assert.Zero(t, associations)

	_, err = fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	assert.ErrorIs(t, err, domainerrors.ErrSurveyNotFound)

	_, err = fixtures.surveys.DeleteSurvey(ctx, created.FamilyID)
	assert.ErrorIs(t, err, domainerrors.ErrSurveyNotFound)

	detached, err := fixtures.drafts.GetDraft(ctx, usecase.DraftRef{OwnerID: draft.OwnerID, DraftID: draft.ID})
	require.NoError(t, err)
	assert.Nil(t, detached.FamilyID)

	assert.Equal(t, 1, fixtures.metrics.deleted)
	assert.Equal(t, []string{constants.EventSurveyCreated, constants.EventSurveyDeleted}, fixtures.publisher.publishedTypes())
}

func TestSurveyService_DeleteSurvey_MissingAssociationTable(t *testing.T) {
	fixtures := createTestServices(t, 6, memory.WithoutAssociationTable(entity.AssociationWater))
	ctx := context.Background()

	input := newSurveyInput("Gómez")
	input.Water = catalog.WaterFlags{}
	created, err := fixtures.surveys.CreateSurvey(ctx, input)
	require.NoError(t, err)

	result, err := fixtures.surveys.DeleteSurvey(ctx, created.FamilyID)
	require.NoError(t, err)
	assert.Zero(t, result.WaterLinksRemoved)
	assert.Equal(t, int64(2), result.DisposalLinksRemoved)

	families, persons, associations := fixtures.store.Counts()
	assert.Zero(t, families+persons+associations)
}

func TestSurveyService_GetSurvey_MissingAssociationTable(t *testing.T) {
	fixtures := createTestServices(t, 6, memory.WithoutAssociationTable(entity.AssociationWater))
	ctx := context.Background()

	input := newSurveyInput("Gómez")
	input.Water = catalog.WaterFlags{}
	created, err := fixtures.surveys.CreateSurvey(ctx, input)
	require.NoError(t, err)

	view, err := fixtures.surveys.GetSurvey(ctx, created.FamilyID)
	require.NoError(t, err)
	assert.Empty(t, view.Utilities.Water)
	assert.Len(t, view.Utilities.Disposal, 2)
	require.Len(t, view.Utilities.Housing, 1)
	assert.Equal(t, "Casa", view.Utilities.Housing[0].Label)
}

func TestSurveyService_CreateSurvey_IdentityExhaustionRollsBack(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	svc, ok := fixtures.surveys.(*surveyService)
	require.True(t, ok)
	svc.writer.identities.maxAttempts = 0

	// Juan has no identification number and needs a generated one.
	_, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.ErrorIs(t, err, domainerrors.ErrIdentityExhausted)

	families, persons, associations := fixtures.store.Counts()
	assert.Zero(t, families)
	assert.Zero(t, persons)
	assert.Zero(t, associations)
	assert.Empty(t, fixtures.publisher.publishedTypes())
	assert.Zero(t, fixtures.metrics.created)
}

func TestSurveyService_CreateSurvey_AssociationFailureRollsBack(t *testing.T) {
	fixtures := createTestServices(t, 6, memory.WithAssociationLinkHook(func(a entity.FamilyAssociation) error {
		if a.Kind == entity.AssociationWater {
			return errors.New("connection reset")
		}

		return nil
	}))
	ctx := context.Background()

	_, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.ErrorIs(t, err, domainerrors.ErrTransactionFailed)

	families, persons, associations := fixtures.store.Counts()
	assert.Zero(t, families)
	assert.Zero(t, persons)
	assert.Zero(t, associations)
	assert.Empty(t, fixtures.publisher.publishedTypes())
}

func TestSurveyService_FamilyCard(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	created, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	png, err := fixtures.surveys.FamilyCard(ctx, created.FamilyID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = fixtures.surveys.FamilyCard(ctx, created.FamilyID+1)
	assert.ErrorIs(t, err, domainerrors.ErrSurveyNotFound)
}

func TestSurveyService_ScanFamilyCard(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	created, err := fixtures.surveys.CreateSurvey(ctx, newSurveyInput("Gómez"))
	require.NoError(t, err)

	card := func(id int64, code string) string {
		raw, err := json.Marshal(map[string]any{"type": "family_card", "family_id": id, "code": code})
		require.NoError(t, err)

		return string(raw)
	}

	view, err := fixtures.surveys.ScanFamilyCard(ctx, card(created.FamilyID, created.FamilyCode))
	require.NoError(t, err)
	assert.Equal(t, created.FamilyID, view.FamilyID)

	_, err = fixtures.surveys.ScanFamilyCard(ctx, card(created.FamilyID, "FAM-OTHER"))
	assert.ErrorIs(t, err, domainerrors.ErrSurveyNotFound)

	_, err = fixtures.surveys.ScanFamilyCard(ctx, "not a card")
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestSurveyService_ExportSurveys(t *testing.T) {
	sectorID := int64(5)
	fixtures := createTestServices(t, 6)
	fixtures.store.SeedLocation(entity.LocationSector, sectorID, "El Retiro")
	ctx := context.Background()

	for _, surname := range []string{"Gómez", "Rojas"} {
		input := newSurveyInput(surname)
		input.Members = input.Members[1:]
		input.Family.SectorID = &sectorID
		_, err := fixtures.surveys.CreateSurvey(ctx, input)
		require.NoError(t, err)
	}

	export, err := fixtures.surveys.ExportSurveys(ctx, usecase.SurveyListFilter{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(export.FileName, ".xlsx"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.ContentType)

	book, err := excelize.OpenReader(bytes.NewReader(export.Content))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Encuestas")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Rojas", rows[1][2])
	assert.Equal(t, "El Retiro", rows[1][5])
}

func TestSurveyService_ExportSurveys_Capped(t *testing.T) {
	fixtures := createTestServices(t, 6)
	ctx := context.Background()

	svc, ok := fixtures.surveys.(*surveyService)
	require.True(t, ok)
	svc.cfg.ExportMaxRows = 1

	for _, surname := range []string{"Gómez", "Rojas"} {
		input := newSurveyInput(surname)
		input.Members = nil
		_, err := fixtures.surveys.CreateSurvey(ctx, input)
		require.NoError(t, err)
	}

	export, err := fixtures.surveys.ExportSurveys(ctx, usecase.SurveyListFilter{})
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(export.Content))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Encuestas")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
