// Package memory provides an in-memory implementation of the survey persistence
// layer used for tests and ephemeral environments. It enforces the same unique
// constraints as the postgres schema.
package memory

import (
	"context"
	"sync"
	"time"

	"censo/internal/domain/entity"
	"censo/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Compile-time contract assertion.
var _ repository.TransactionManager = (*Store)(nil)

type associationKey struct {
	familyID  int64
	catalogID int64
}

type auditKey struct {
	ref       string
	eventType string
}

type state struct {
	families     map[int64]entity.Family
	persons      map[int64]entity.Person
	associations map[entity.AssociationKind]map[associationKey]struct{}
	drafts       map[uuid.UUID]entity.SurveyDraft
	audits       map[int64]entity.AuditLog
	auditIndex   map[auditKey]int64
	locations    map[entity.LocationKind]map[int64]string

	nextFamilyID int64
	nextPersonID int64
	nextAuditID  int64
}

func newState() state {
	s := state{
		families:     make(map[int64]entity.Family),
		persons:      make(map[int64]entity.Person),
		associations: make(map[entity.AssociationKind]map[associationKey]struct{}),
		drafts:       make(map[uuid.UUID]entity.SurveyDraft),
		audits:       make(map[int64]entity.AuditLog),
		auditIndex:   make(map[auditKey]int64),
		locations:    make(map[entity.LocationKind]map[int64]string),
	}
	for _, kind := range entity.AssociationKinds {
		s.associations[kind] = make(map[associationKey]struct{})
	}

	return s
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.families {
		c.families[k] = v
	}
	for k, v := range s.persons {
		c.persons[k] = clonePerson(v)
	}
	for kind, rows := range s.associations {
		copied := make(map[associationKey]struct{}, len(rows))
		for k := range rows {
			copied[k] = struct{}{}
		}
		c.associations[kind] = copied
	}
	for k, v := range s.drafts {
		c.drafts[k] = cloneDraft(v)
	}
	for k, v := range s.audits {
		c.audits[k] = v
	}
	for k, v := range s.auditIndex {
		c.auditIndex[k] = v
	}
	for kind, rows := range s.locations {
		copied := make(map[int64]string, len(rows))
		for id, name := range rows {
			copied[id] = name
		}
		c.locations[kind] = copied
	}
	c.nextFamilyID = s.nextFamilyID
	c.nextPersonID = s.nextPersonID
	c.nextAuditID = s.nextAuditID

	return c
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFn = now
	}
}

// WithPersonCreateHook runs fn before each person insert; a non-nil error fails the insert.
func WithPersonCreateHook(fn func(*entity.Person) error) Option {
	return func(s *Store) {
		s.beforePersonCreate = fn
	}
}

// WithAssociationLinkHook runs fn before each association insert; a non-nil error fails the insert.
func WithAssociationLinkHook(fn func(entity.FamilyAssociation) error) Option {
	return func(s *Store) {
		s.beforeAssociationLink = fn
	}
}

// WithoutAssociationTable makes the join table behave as if it was never created.
func WithoutAssociationTable(kind entity.AssociationKind) Option {
	return func(s *Store) {
		s.missingTables[kind] = true
	}
}

// WithBrokenLocationCatalog makes every lookup in the catalog fail.
func WithBrokenLocationCatalog(kind entity.LocationKind) Option {
	return func(s *Store) {
		s.brokenLocations[kind] = true
	}
}

// Store is a mutex-guarded state. Each transaction works on a clone that replaces
// the committed state only when the callback succeeds.
type Store struct {
	mu    sync.Mutex
	state state
	nowFn func() time.Time

	beforePersonCreate    func(*entity.Person) error
	beforeAssociationLink func(entity.FamilyAssociation) error
	missingTables         map[entity.AssociationKind]bool
	brokenLocations       map[entity.LocationKind]bool
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:           newState(),
		nowFn:           func() time.Time { return time.Now().UTC() },
		missingTables:   make(map[entity.AssociationKind]bool),
		brokenLocations: make(map[entity.LocationKind]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SeedLocation registers a location catalog entry.
func (s *Store) SeedLocation(kind entity.LocationKind, id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.state.locations[kind]
	if !ok {
		rows = make(map[int64]string)
		s.state.locations[kind] = rows
	}
	rows[id] = name
}

// Counts reports committed row counts, for assertions in tests.
func (s *Store) Counts() (families, persons, associations int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rows := range s.state.associations {
		associations += len(rows)
	}

	return len(s.state.families), len(s.state.persons), associations
}

// Execute runs fn against a private copy of the state and commits it on success.
// Transactions are serialized.
func (s *Store) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store:      s,
		state:      s.state.clone(),
		savepoints: make(map[string]state),
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.state = tx.state

	return nil
}

// transaction implements repository.RepositoryFactory over one cloned state.
type transaction struct {
	store      *Store
	state      state
	savepoints map[string]state
}

func (tx *transaction) now() time.Time {
	return tx.store.nowFn()
}

func (tx *transaction) FamilyRepo() repository.FamilyRepository {
	return &familyRepository{tx: tx}
}

func (tx *transaction) PersonRepo() repository.PersonRepository {
	return &personRepository{tx: tx}
}

func (tx *transaction) AssociationRepo() repository.AssociationRepository {
	return &associationRepository{tx: tx}
}

func (tx *transaction) LocationRepo() repository.LocationRepository {
	return &locationRepository{tx: tx}
}

func (tx *transaction) DraftRepo() repository.DraftRepository {
	return &draftRepository{tx: tx}
}

func (tx *transaction) AuditRepo() repository.AuditRepository {
	return &auditRepository{tx: tx}
}

func (tx *transaction) SavePoint(_ context.Context, name string) error {
	tx.savepoints[name] = tx.state.clone()

	return nil
}

func (tx *transaction) RollbackTo(_ context.Context, name string) error {
	saved, ok := tx.savepoints[name]
	if !ok {
		return errors.Errorf("savepoint %s does not exist", name)
	}
	tx.state = saved.clone()

	return nil
}

func clonePerson(p entity.Person) entity.Person {
	if p.Deceased != nil {
		details := *p.Deceased
		p.Deceased = &details
	}

	return p
}

func cloneDraft(d entity.SurveyDraft) entity.SurveyDraft {
	stages := make([]entity.DraftStage, len(d.Stages))
	for i, stage := range d.Stages {
		stages[i] = entity.DraftStage{Number: stage.Number, Data: cloneMap(stage.Data), SavedAt: stage.SavedAt}
	}
	members := make([]entity.DraftMember, len(d.Members))
	for i, member := range d.Members {
		members[i] = member
		members[i].Data = cloneMap(member.Data)
	}
	d.Stages = stages
	d.Members = members

	return d
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	copied := make(map[string]any, len(m))
	for k, v := range m {
		copied[k] = cloneValue(v)
	}

	return copied
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		copied := make([]any, len(val))
		for i, inner := range val {
			copied[i] = cloneValue(inner)
		}

		return copied
	default:
		return val
	}
}
