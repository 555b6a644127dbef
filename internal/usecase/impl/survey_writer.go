package impl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"censo/internal/domain/catalog"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Member kinds reported in skipped member entries.
const (
	memberKindLiving   = "living"
	memberKindDeceased = "deceased"
)

var dateLayouts = []string{time.DateOnly, time.RFC3339Nano, "02/01/2006"}

// surveyWriter stores one interview as a family aggregate inside the caller's transaction.
// Member inserts run behind savepoints so a bad member is skipped without aborting the rest.
type surveyWriter struct {
	identities *identityGenerator
	random     io.Reader
	now        func() time.Time
}

func newSurveyWriter(identities *identityGenerator, random io.Reader, now func() time.Time) *surveyWriter {
	if random == nil {
		random = rand.Reader
	}
	if now == nil {
		now = time.Now
	}

	return &surveyWriter{
		identities: identities,
		random:     random,
		now:        now,
	}
}

// Write inserts the family, its associations and its members. Any error it returns must
// abort the transaction; member-level failures are reported in SkippedMembers instead.
func (w *surveyWriter) Write(ctx context.Context, repos repository.RepositoryFactory, input *usecase.SurveyInput, logger *slog.Logger) (*entity.Family, *usecase.SurveyResult, error) {
	now := w.now().UTC()

	code, err := w.familyCode(now)
	if err != nil {
		return nil, nil, err
	}

	family := buildFamily(input, code)
	family.RecordSurvey(now)
	if err := repos.FamilyRepo().Create(ctx, family); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create family")
	}

	if err := linkAssociations(ctx, repos.AssociationRepo(), associationLinks(family.ID, input)); err != nil {
		return nil, nil, err
	}

	result := newSurveyResult(family)
	if err := w.writeMembers(ctx, repos, family.ID, input, result, logger, now); err != nil {
		return nil, nil, err
	}

	if err := repos.FamilyRepo().UpdateHouseholdSize(ctx, family.ID, result.MembersCreated); err != nil {
		return nil, nil, errors.Wrap(err, "failed to update household size")
	}
	family.HouseholdSize = result.MembersCreated

	return family, result, nil
}

// Resurvey applies a follow-up interview to an existing family. Profile fields present in
// the input replace the stored ones, observations are appended, every utility category
// present in the input replaces its links, and new members are added with the same
// skip rules as a first interview.
func (w *surveyWriter) Resurvey(ctx context.Context, repos repository.RepositoryFactory, family *entity.Family, input *usecase.SurveyInput, logger *slog.Logger) (*usecase.SurveyResult, error) {
	now := w.now().UTC()

	if applyFamilyProfile(family, input) {
		if err := checkIdentityAvailable(ctx, repos.FamilyRepo(), family); err != nil {
			return nil, err
		}
	}
	if err := repos.FamilyRepo().Update(ctx, family); err != nil {
		return nil, errors.Wrap(err, "failed to update family")
	}

	links := associationLinks(family.ID, input)
	for _, kind := range entity.AssociationKinds {
		if !slices.ContainsFunc(links, func(link entity.FamilyAssociation) bool { return link.Kind == kind }) {
			continue
		}
		if _, err := unlinkAssociations(ctx, repos, logger, kind, family.ID); err != nil {
			return nil, err
		}
	}
	if err := linkAssociations(ctx, repos.AssociationRepo(), links); err != nil {
		return nil, err
	}

	result := newSurveyResult(family)
	if err := w.writeMembers(ctx, repos, family.ID, input, result, logger, now); err != nil {
		return nil, err
	}

	living, _, err := repos.PersonRepo().CountByFamily(ctx, family.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count family members")
	}
	if err := repos.FamilyRepo().UpdateHouseholdSize(ctx, family.ID, int(living)); err != nil {
		return nil, errors.Wrap(err, "failed to update household size")
	}
	family.HouseholdSize = int(living)

	if err := repos.FamilyRepo().RecordSurvey(ctx, family.ID, now); err != nil {
		return nil, errors.Wrap(err, "failed to record survey")
	}
	family.RecordSurvey(now)

	return result, nil
}

func newSurveyResult(family *entity.Family) *usecase.SurveyResult {
	return &usecase.SurveyResult{
		FamilyID:       family.ID,
		FamilyCode:     family.Code,
		SkippedMembers: []usecase.SkippedMember{},
		TransactionRef: uuid.NewString(),
	}
}

// writeMembers inserts the living and deceased members and fills the counters and skip
// list of result.
func (w *surveyWriter) writeMembers(
	ctx context.Context,
	repos repository.RepositoryFactory,
	familyID int64,
	input *usecase.SurveyInput,
	result *usecase.SurveyResult,
	logger *slog.Logger,
	now time.Time,
) error {
	for i := range input.Members {
		person, reason, err := w.buildLivingPerson(ctx, repos, familyID, &input.Members[i])
		if err != nil {
			return err
		}
		if reason == "" {
			reason, err = insertMember(ctx, repos, fmt.Sprintf("member_%d", i), person)
			if err != nil {
				return err
			}
		}
		if reason != "" {
			logger.Warn("Skipping household member", slog.Int("memberIndex", i), slog.String("reason", reason))
			result.SkippedMembers = append(result.SkippedMembers, usecase.SkippedMember{Index: i, Kind: memberKindLiving, Reason: reason})

			continue
		}
		result.MembersCreated++
	}

	for i := range input.Deceased {
		person, reason, err := w.buildDeceasedPerson(ctx, repos, familyID, &input.Deceased[i], now)
		if err != nil {
			return err
		}
		if reason == "" {
			reason, err = insertMember(ctx, repos, fmt.Sprintf("deceased_%d", i), person)
			if err != nil {
				return err
			}
		}
		if reason != "" {
			logger.Warn("Skipping deceased member", slog.Int("memberIndex", i), slog.String("reason", reason))
			result.SkippedMembers = append(result.SkippedMembers, usecase.SkippedMember{Index: i, Kind: memberKindDeceased, Reason: reason})

			continue
		}
		result.DeceasedCreated++
	}

	return nil
}

// familyCode renders FAM-<unix millis base36>-<4 hex>, upper case.
func (w *surveyWriter) familyCode(now time.Time) (string, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(w.random, buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return strings.ToUpper("FAM-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + hex.EncodeToString(buf)), nil
}

// insertMember runs the insert behind a savepoint. A failed insert is rolled back and
// returned as a skip reason; only a failed rollback aborts the transaction.
func insertMember(ctx context.Context, repos repository.RepositoryFactory, savepoint string, person *entity.Person) (string, error) {
	if err := repos.SavePoint(ctx, savepoint); err != nil {
		return "", errors.Wrapf(err, "failed to create savepoint %s", savepoint)
	}

	insertErr := repos.PersonRepo().Create(ctx, person)
	if insertErr == nil {
		return "", nil
	}

	if err := repos.RollbackTo(ctx, savepoint); err != nil {
		return "", errors.Wrapf(err, "failed to roll back to savepoint %s", savepoint)
	}

	switch {
	case errors.Is(insertErr, repository.ErrDuplicateIdentification):
		return "identification number already registered", nil
	case errors.Is(insertErr, repository.ErrInvalidPersonReference):
		return "invalid family reference", nil
	default:
		return "insert failed: " + insertErr.Error(), nil
	}
}

func buildFamily(input *usecase.SurveyInput, code string) *entity.Family {
	in := input.Family
	family := &entity.Family{
		Code:             code,
		Surname:          strings.TrimSpace(in.Surname),
		Address:          strings.TrimSpace(in.Address),
		Phone:            strings.TrimSpace(in.Phone),
		HousingTypeLabel: strings.TrimSpace(in.HousingType),
		SurveyStatus:     entity.SurveyStatusPending,
		SectorID:         in.SectorID,
		VeredaID:         in.VeredaID,
		MunicipalityID:   in.MunicipalityID,
		ParishID:         in.ParishID,
		Observations:     strings.TrimSpace(input.Observations),
		CreatedBy:        input.CreatedBy,
	}
	if in.Email != nil {
		if email := strings.TrimSpace(*in.Email); email != "" {
			family.Email = &email
		}
	}

	return family
}

// applyFamilyProfile overlays the non-blank profile fields of a follow-up interview and
// reports whether the identity triple changed.
func applyFamilyProfile(family *entity.Family, input *usecase.SurveyInput) bool {
	before := familyIdentityOf(family)
	in := input.Family

	replaceIfPresent(&family.Surname, in.Surname)
	replaceIfPresent(&family.Address, in.Address)
	replaceIfPresent(&family.Phone, in.Phone)
	replaceIfPresent(&family.HousingTypeLabel, in.HousingType)
	if in.Email != nil {
		if email := strings.TrimSpace(*in.Email); email != "" {
			family.Email = &email
		}
	}
	if in.SectorID != nil {
		family.SectorID = in.SectorID
	}
	if in.VeredaID != nil {
		family.VeredaID = in.VeredaID
	}
	if in.MunicipalityID != nil {
		family.MunicipalityID = in.MunicipalityID
	}
	if in.ParishID != nil {
		family.ParishID = in.ParishID
	}
	if observations := strings.TrimSpace(input.Observations); observations != "" {
		family.Observations = strings.TrimSpace(family.Observations + "\n" + observations)
	}

	return familyIdentityOf(family) != before
}

func replaceIfPresent(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func associationLinks(familyID int64, input *usecase.SurveyInput) []entity.FamilyAssociation {
	links := make([]entity.FamilyAssociation, 0, 8)
	for _, id := range catalog.DisposalMethods(input.Disposal) {
		links = append(links, entity.FamilyAssociation{FamilyID: familyID, Kind: entity.AssociationDisposal, CatalogID: id})
	}
	for _, id := range catalog.WaterSystems(input.Water) {
		links = append(links, entity.FamilyAssociation{FamilyID: familyID, Kind: entity.AssociationWater, CatalogID: id})
	}
	if id := catalog.ResolveHousingType(input.Family.HousingType); id != nil {
		links = append(links, entity.FamilyAssociation{FamilyID: familyID, Kind: entity.AssociationHousing, CatalogID: *id})
	}

	return links
}

func linkAssociations(ctx context.Context, associations repository.AssociationRepository, links []entity.FamilyAssociation) error {
	for _, link := range links {
		if err := associations.Link(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicateAssociation) {
				return errors.Wrapf(domainerrors.ErrDuplicateAssociation, "%s catalog item %d", link.Kind, link.CatalogID)
			}

			return errors.Wrapf(err, "failed to link %s catalog item %d", link.Kind, link.CatalogID)
		}
	}

	return nil
}

// unlinkAssociations clears one join table for the family. A missing table is skipped;
// the savepoint keeps the transaction usable after the failed statement.
func unlinkAssociations(ctx context.Context, repos repository.RepositoryFactory, logger *slog.Logger, kind entity.AssociationKind, familyID int64) (int64, error) {
	savepoint := "unlink_" + string(kind)
	if err := repos.SavePoint(ctx, savepoint); err != nil {
		return 0, errors.Wrapf(err, "failed to create savepoint %s", savepoint)
	}

	removed, err := repos.AssociationRepo().DeleteByFamily(ctx, kind, familyID)
	if err == nil {
		return removed, nil
	}
	if !errors.Is(err, repository.ErrAssociationTableMissing) {
		return 0, errors.Wrapf(err, "failed to delete %s associations", kind)
	}

	logger.Warn("Association table missing, skipping", slog.String("kind", string(kind)))
	if err := repos.RollbackTo(ctx, savepoint); err != nil {
		return 0, errors.Wrapf(err, "failed to roll back to savepoint %s", savepoint)
	}

	return 0, nil
}

// buildLivingPerson returns a skip reason for member-level problems and an error only
// for failures that must abort the whole survey.
func (w *surveyWriter) buildLivingPerson(ctx context.Context, repos repository.RepositoryFactory, familyID int64, m *usecase.MemberInput) (*entity.Person, string, error) {
	firstName := strings.TrimSpace(m.FirstName)
	if firstName == "" {
		return nil, "first name is required", nil
	}

	birthDate, err := parseLenientDate(m.BirthDate)
	if err != nil {
		return nil, "invalid birth date: " + err.Error(), nil
	}

	person := &entity.Person{
		FamilyID:             familyID,
		Kind:                 entity.PersonKindLiving,
		FirstName:            firstName,
		MiddleName:           strings.TrimSpace(m.MiddleName),
		FirstSurname:         strings.TrimSpace(m.FirstSurname),
		SecondSurname:        strings.TrimSpace(m.SecondSurname),
		BirthDate:            birthDate,
		Phone:                strings.TrimSpace(m.Phone),
		Email:                strings.TrimSpace(m.Email),
		IdentificationTypeID: catalog.ResolveIdentificationType(m.IdentificationType),
		IdentificationNumber: strings.TrimSpace(m.IdentificationNumber),
		SexID:                catalog.ResolveSex(m.Sex),
		CivilStatusID:        catalog.ResolveCivilStatus(m.CivilStatus),
		EducationLevelID:     catalog.ResolveEducationLevel(m.EducationLevel),
		LeadershipRole:       strings.TrimSpace(m.LeadershipRole),
		ShirtSize:            strings.TrimSpace(m.ShirtSize),
		PantsSize:            strings.TrimSpace(m.PantsSize),
		ShoeSize:             strings.TrimSpace(m.ShoeSize),
		HealthNeeds:          strings.TrimSpace(m.HealthNeeds),
	}

	if person.IdentificationNumber == "" {
		person.IdentificationNumber, err = w.identities.Generate(ctx, entity.TemporaryIDPrefix, repos.PersonRepo().ExistsByIdentification)
		if err != nil {
			return nil, "", err
		}
	}

	return person, "", nil
}

func (w *surveyWriter) buildDeceasedPerson(ctx context.Context, repos repository.RepositoryFactory, familyID int64, d *usecase.DeceasedInput, now time.Time) (*entity.Person, string, error) {
	firstName := strings.TrimSpace(d.FirstName)
	if firstName == "" {
		return nil, "first name is required", nil
	}

	anniversary, err := parseLenientDate(d.Anniversary)
	if err != nil {
		return nil, "invalid anniversary: " + err.Error(), nil
	}
	if anniversary != nil && anniversary.After(now) {
		return nil, "anniversary is in the future", nil
	}

	person := &entity.Person{
		FamilyID:             familyID,
		Kind:                 entity.PersonKindDeceased,
		FirstName:            firstName,
		MiddleName:           strings.TrimSpace(d.MiddleName),
		FirstSurname:         strings.TrimSpace(d.FirstSurname),
		SecondSurname:        strings.TrimSpace(d.SecondSurname),
		IdentificationNumber: strings.TrimSpace(d.IdentificationNumber),
		SexID:                catalog.ResolveSex(d.Sex),
		Deceased: &entity.DeceasedDetails{
			Anniversary: anniversary,
			WasFather:   d.WasFather,
			WasMother:   d.WasMother,
			Cause:       strings.TrimSpace(d.Cause),
		},
	}

	if person.IdentificationNumber == "" {
		person.IdentificationNumber, err = w.identities.Generate(ctx, entity.DeceasedIDPrefix, repos.PersonRepo().ExistsByIdentification)
		if err != nil {
			return nil, "", err
		}
	}

	return person, "", nil
}

// parseLenientDate accepts null, a blank string or a date string in one of the known
// layouts. Any other JSON type is rejected.
func parseLenientDate(raw json.RawMessage) (*time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return nil, errors.New("expected a date string")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)

			return &date, nil
		}
	}

	return nil, errors.Errorf("unrecognized date %q", text)
}

// validateSurveyInput enforces the household identity before anything is written.
func validateSurveyInput(input *usecase.SurveyInput) error {
	if input == nil {
		return domainerrors.ErrValidationFailed.WithDetails(map[string]any{"reason": "empty survey"})
	}

	var missing []string
	if strings.TrimSpace(input.Family.Surname) == "" {
		missing = append(missing, "family.surname")
	}
	if strings.TrimSpace(input.Family.Phone) == "" {
		missing = append(missing, "family.phone")
	}
	if strings.TrimSpace(input.Family.Address) == "" {
		missing = append(missing, "family.address")
	}
	if len(missing) > 0 {
		return domainerrors.ErrValidationFailed.WithDetails(map[string]any{"missingFields": missing})
	}

	return nil
}

func identityOf(input *usecase.SurveyInput) familyIdentity {
	return familyIdentity{
		Surname: strings.TrimSpace(input.Family.Surname),
		Phone:   strings.TrimSpace(input.Family.Phone),
		Address: strings.TrimSpace(input.Family.Address),
	}
}
