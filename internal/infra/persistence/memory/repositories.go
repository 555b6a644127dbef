package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"censo/internal/domain/entity"
	"censo/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type familyRepository struct {
	tx *transaction
}

func (repo *familyRepository) Create(_ context.Context, family *entity.Family) error {
	for _, existing := range repo.tx.state.families {
		if existing.Surname == family.Surname && existing.Phone == family.Phone && existing.Address == family.Address {
			return repository.ErrDuplicateFamily
		}
		if existing.Code == family.Code {
			return errors.Errorf("family code %s already exists", family.Code)
		}
	}

	repo.tx.state.nextFamilyID++
	now := repo.tx.now()
	family.ID = repo.tx.state.nextFamilyID
	family.CreatedAt = now
	family.UpdatedAt = now
	if family.SurveyStatus == "" {
		family.SurveyStatus = entity.SurveyStatusPending
	}
	repo.tx.state.families[family.ID] = *family

	return nil
}

func (repo *familyRepository) FindByID(_ context.Context, id int64) (*entity.Family, error) {
	family, ok := repo.tx.state.families[id]
	if !ok {
		return nil, repository.ErrFamilyNotFound
	}

	return &family, nil
}

func (repo *familyRepository) FindByIdentity(_ context.Context, surname, phone, address string) (*entity.Family, error) {
	for _, family := range repo.tx.state.families {
		if family.Surname == surname && family.Phone == phone && family.Address == address {
			return &family, nil
		}
	}

	return nil, repository.ErrFamilyNotFound
}

func (repo *familyRepository) Update(_ context.Context, family *entity.Family) error {
	stored, ok := repo.tx.state.families[family.ID]
	if !ok {
		return repository.ErrFamilyNotFound
	}
	for id, existing := range repo.tx.state.families {
		if id != family.ID && existing.Surname == family.Surname && existing.Phone == family.Phone && existing.Address == family.Address {
			return repository.ErrDuplicateFamily
		}
	}

	stored.Surname = family.Surname
	stored.Address = family.Address
	stored.Phone = family.Phone
	stored.Email = family.Email
	stored.HousingTypeLabel = family.HousingTypeLabel
	stored.SectorID = family.SectorID
	stored.VeredaID = family.VeredaID
	stored.MunicipalityID = family.MunicipalityID
	stored.ParishID = family.ParishID
	stored.Observations = family.Observations
	stored.UpdatedAt = repo.tx.now()
	repo.tx.state.families[family.ID] = stored

	return nil
}

func (repo *familyRepository) UpdateHouseholdSize(_ context.Context, id int64, size int) error {
	family, ok := repo.tx.state.families[id]
	if !ok {
		return repository.ErrFamilyNotFound
	}
	family.HouseholdSize = size
	family.UpdatedAt = repo.tx.now()
	repo.tx.state.families[id] = family

	return nil
}

func (repo *familyRepository) RecordSurvey(_ context.Context, id int64, at time.Time) error {
	family, ok := repo.tx.state.families[id]
	if !ok {
		return repository.ErrFamilyNotFound
	}
	family.RecordSurvey(at)
	family.UpdatedAt = repo.tx.now()
	repo.tx.state.families[id] = family

	return nil
}

func (repo *familyRepository) List(_ context.Context, filter repository.FamilyFilter) ([]*entity.Family, int64, error) {
	prefix := strings.ToLower(strings.TrimSpace(filter.Surname))

	matches := make([]entity.Family, 0)
	for _, family := range repo.tx.state.families {
		if filter.SectorID != nil && (family.SectorID == nil || *family.SectorID != *filter.SectorID) {
			continue
		}
		if filter.MunicipalityID != nil && (family.MunicipalityID == nil || *family.MunicipalityID != *filter.MunicipalityID) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(strings.ToLower(family.Surname), prefix) {
			continue
		}
		matches = append(matches, family)
	}
	slices.SortFunc(matches, func(a, b entity.Family) int {
		return int(b.ID - a.ID)
	})

	total := int64(len(matches))
	start := min(max(filter.Offset, 0), len(matches))
	end := len(matches)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matches))
	}

	page := make([]*entity.Family, 0, end-start)
	for i := start; i < end; i++ {
		page = append(page, &matches[i])
	}

	return page, total, nil
}

func (repo *familyRepository) Delete(_ context.Context, id int64) (int64, error) {
	if _, ok := repo.tx.state.families[id]; !ok {
		return 0, nil
	}
	for _, person := range repo.tx.state.persons {
		if person.FamilyID == id {
			return 0, errors.Errorf("family %d still has persons", id)
		}
	}
	delete(repo.tx.state.families, id)

	return 1, nil
}

type personRepository struct {
	tx *transaction
}

func (repo *personRepository) Create(_ context.Context, person *entity.Person) error {
	if hook := repo.tx.store.beforePersonCreate; hook != nil {
		if err := hook(person); err != nil {
			return err
		}
	}
	if _, ok := repo.tx.state.families[person.FamilyID]; !ok {
		return repository.ErrInvalidPersonReference
	}
	for _, existing := range repo.tx.state.persons {
		if existing.IdentificationNumber == person.IdentificationNumber {
			return repository.ErrDuplicateIdentification
		}
	}

	repo.tx.state.nextPersonID++
	now := repo.tx.now()
	person.ID = repo.tx.state.nextPersonID
	person.CreatedAt = now
	person.UpdatedAt = now
	repo.tx.state.persons[person.ID] = clonePerson(*person)

	return nil
}

func (repo *personRepository) ExistsByIdentification(_ context.Context, number string) (bool, error) {
	for _, person := range repo.tx.state.persons {
		if person.IdentificationNumber == number {
			return true, nil
		}
	}

	return false, nil
}

func (repo *personRepository) FindByFamily(_ context.Context, familyID int64) ([]*entity.Person, error) {
	persons := make([]*entity.Person, 0)
	for _, person := range repo.tx.state.persons {
		if person.FamilyID == familyID {
			copied := clonePerson(person)
			persons = append(persons, &copied)
		}
	}
	slices.SortFunc(persons, func(a, b *entity.Person) int {
		return int(a.ID - b.ID)
	})

	return persons, nil
}

func (repo *personRepository) CountByFamily(_ context.Context, familyID int64) (living, deceased int64, err error) {
	for _, person := range repo.tx.state.persons {
		if person.FamilyID != familyID {
			continue
		}
		if person.IsDeceased() {
			deceased++
		} else {
			living++
		}
	}

	return living, deceased, nil
}

func (repo *personRepository) DeleteByFamily(_ context.Context, familyID int64) (int64, error) {
	var removed int64
	for id, person := range repo.tx.state.persons {
		if person.FamilyID == familyID {
			delete(repo.tx.state.persons, id)
			removed++
		}
	}

	return removed, nil
}

type associationRepository struct {
	tx *transaction
}

func (repo *associationRepository) table(kind entity.AssociationKind) (map[associationKey]struct{}, error) {
	if !kind.IsValid() {
		return nil, errors.Errorf("unknown association kind: %s", kind)
	}
	if repo.tx.store.missingTables[kind] {
		return nil, repository.ErrAssociationTableMissing
	}

	return repo.tx.state.associations[kind], nil
}

func (repo *associationRepository) Link(_ context.Context, association entity.FamilyAssociation) error {
	if hook := repo.tx.store.beforeAssociationLink; hook != nil {
		if err := hook(association); err != nil {
			return err
		}
	}

	rows, err := repo.table(association.Kind)
	if err != nil {
		return err
	}

	key := associationKey{familyID: association.FamilyID, catalogID: association.CatalogID}
	if _, exists := rows[key]; exists {
		return repository.ErrDuplicateAssociation
	}
	rows[key] = struct{}{}

	return nil
}

func (repo *associationRepository) FindByFamily(_ context.Context, kind entity.AssociationKind, familyID int64) ([]entity.FamilyAssociation, error) {
	rows, err := repo.table(kind)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for key := range rows {
		if key.familyID == familyID {
			ids = append(ids, key.catalogID)
		}
	}
	slices.Sort(ids)

	associations := make([]entity.FamilyAssociation, 0, len(ids))
	for _, id := range ids {
		associations = append(associations, entity.FamilyAssociation{FamilyID: familyID, Kind: kind, CatalogID: id})
	}

	return associations, nil
}

func (repo *associationRepository) DeleteByFamily(_ context.Context, kind entity.AssociationKind, familyID int64) (int64, error) {
	rows, err := repo.table(kind)
	if err != nil {
		return 0, err
	}

	var removed int64
	for key := range rows {
		if key.familyID == familyID {
			delete(rows, key)
			removed++
		}
	}

	return removed, nil
}

type locationRepository struct {
	tx *transaction
}

func (repo *locationRepository) FindByID(_ context.Context, kind entity.LocationKind, id int64) (*entity.LocationRef, error) {
	if repo.tx.store.brokenLocations[kind] {
		return nil, errors.Errorf("location catalog %s is unavailable", kind)
	}

	name, ok := repo.tx.state.locations[kind][id]
	if !ok {
		return nil, repository.ErrLocationNotFound
	}

	return &entity.LocationRef{ID: id, Name: name}, nil
}

type draftRepository struct {
	tx *transaction
}

func (repo *draftRepository) Create(_ context.Context, draft *entity.SurveyDraft) error {
	if _, exists := repo.tx.state.drafts[draft.ID]; exists {
		return errors.Errorf("survey draft %s already exists", draft.ID)
	}
	repo.tx.state.drafts[draft.ID] = cloneDraft(*draft)

	return nil
}

func (repo *draftRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.SurveyDraft, error) {
	draft, ok := repo.tx.state.drafts[id]
	if !ok {
		return nil, repository.ErrDraftNotFound
	}
	copied := cloneDraft(draft)

	return &copied, nil
}

func (repo *draftRepository) FindByOwner(_ context.Context, ownerID uuid.UUID) ([]*entity.SurveyDraft, error) {
	drafts := make([]*entity.SurveyDraft, 0)
	for _, draft := range repo.tx.state.drafts {
		if draft.OwnerID == ownerID {
			copied := cloneDraft(draft)
			drafts = append(drafts, &copied)
		}
	}
	slices.SortFunc(drafts, func(a, b *entity.SurveyDraft) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	return drafts, nil
}

func (repo *draftRepository) Update(_ context.Context, draft *entity.SurveyDraft, expectedVersion int64) error {
	stored, ok := repo.tx.state.drafts[draft.ID]
	if !ok {
		return repository.ErrDraftNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrDraftVersionMismatch
	}

	updated := cloneDraft(*draft)
	updated.OwnerID = stored.OwnerID
	updated.CreatedAt = stored.CreatedAt
	repo.tx.state.drafts[draft.ID] = updated

	return nil
}

func (repo *draftRepository) DetachFamily(_ context.Context, familyID int64) (int64, error) {
	var detached int64
	for id, draft := range repo.tx.state.drafts {
		if draft.FamilyID != nil && *draft.FamilyID == familyID {
			draft.FamilyID = nil
			repo.tx.state.drafts[id] = draft
			detached++
		}
	}

	return detached, nil
}

type auditRepository struct {
	tx *transaction
}

func (repo *auditRepository) Create(_ context.Context, log *entity.AuditLog) error {
	key := auditKey{ref: log.TransactionRef, eventType: log.EventType}
	if _, exists := repo.tx.state.auditIndex[key]; exists {
		return repository.ErrDuplicateAuditEvent
	}

	repo.tx.state.nextAuditID++
	log.ID = repo.tx.state.nextAuditID
	log.RecordedAt = repo.tx.now()
	repo.tx.state.audits[log.ID] = *log
	repo.tx.state.auditIndex[key] = log.ID

	return nil
}
