package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"censo/config"
	deliverycontext "censo/internal/delivery/context"
	"censo/internal/domain/constants"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/domain/service"
	"censo/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultCancelReason = "sin motivo"

// draftService implements the DraftUsecase interface.
type draftService struct {
	txManager repository.TransactionManager
	writer    *surveyWriter
	autoSave  service.AutoSaveStore
	publisher service.EventPublisher
	metrics   service.SurveyMetrics
	cfg       config.SurveyConfig
	now       func() time.Time
	logger    *slog.Logger
}

// DraftServiceParams holds dependencies for DraftService, injected by Fx.
type DraftServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	AutoSave  service.AutoSaveStore
	Publisher service.EventPublisher
	Metrics   service.SurveyMetrics
	Config    *config.Config
	Logger    *slog.Logger
}

// NewDraftService is the constructor for draftService.
func NewDraftService(params DraftServiceParams) usecase.DraftUsecase {
	identities := newIdentityGenerator(params.Config.Survey.IdentityMaxAttempts, nil, nil)

	return &draftService{
		txManager: params.TxManager,
		writer:    newSurveyWriter(identities, nil, nil),
		autoSave:  params.AutoSave,
		publisher: params.Publisher,
		metrics:   params.Metrics,
		cfg:       params.Config.Survey,
		now:       time.Now,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *draftService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateDraft starts an empty draft, optionally linked to an existing family.
func (srv *draftService) CreateDraft(ctx context.Context, input *usecase.CreateDraftInput) (*entity.SurveyDraft, error) {
	draft := entity.NewSurveyDraft(input.OwnerID, srv.cfg.TotalStages, srv.now().UTC())
	draft.FamilyID = input.FamilyID

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if input.FamilyID != nil {
			if _, err := repoFactory.FamilyRepo().FindByID(ctx, *input.FamilyID); err != nil {
				if errors.Is(err, repository.ErrFamilyNotFound) {
					return errors.Wrapf(domainerrors.ErrSurveyNotFound, "family %d", *input.FamilyID)
				}

				return errors.Wrap(err, "failed to find family")
			}
		}

		return repoFactory.DraftRepo().Create(ctx, draft)
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to create survey draft", slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Survey draft created", slog.String("draftID", draft.ID.String()), slog.String("ownerID", draft.OwnerID.String()))
	srv.metrics.DraftTransition(string(draft.Status))

	return draft, nil
}

// GetDraft returns a draft owned by the caller.
func (srv *draftService) GetDraft(ctx context.Context, ref usecase.DraftRef) (*entity.SurveyDraft, error) {
	var draft *entity.SurveyDraft
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		draft, err = loadOwnedDraft(ctx, repoFactory, ref)

		return err
	})
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// ListDrafts returns the caller's drafts.
func (srv *draftService) ListDrafts(ctx context.Context, ownerID uuid.UUID) ([]*entity.SurveyDraft, error) {
	var drafts []*entity.SurveyDraft
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		drafts, err = repoFactory.DraftRepo().FindByOwner(ctx, ownerID)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list survey drafts")
	}

	return drafts, nil
}

// loadOwnedDraft hides drafts of other owners behind NotFound.
func loadOwnedDraft(ctx context.Context, repos repository.RepositoryFactory, ref usecase.DraftRef) (*entity.SurveyDraft, error) {
	draft, err := repos.DraftRepo().FindByID(ctx, ref.DraftID)
	if err != nil {
		if errors.Is(err, repository.ErrDraftNotFound) {
			return nil, errors.Wrapf(domainerrors.ErrDraftNotFound, "draft %s", ref.DraftID)
		}

		return nil, errors.Wrap(err, "failed to find survey draft")
	}
	if draft.OwnerID != ref.OwnerID {
		return nil, errors.Wrapf(domainerrors.ErrDraftNotFound, "draft %s", ref.DraftID)
	}

	return draft, nil
}

func versionConflict(current int64) error {
	return domainerrors.ErrVersionConflict.WithDetails(map[string]any{"currentVersion": current})
}

// mutate loads the draft, applies fn and writes it back with a compare-and-swap on the
// stored version. fn runs inside the same transaction as the write.
func (srv *draftService) mutate(
	ctx context.Context,
	ref usecase.DraftRef,
	fn func(repos repository.RepositoryFactory, draft *entity.SurveyDraft, now time.Time) error,
) (*entity.SurveyDraft, error) {
	var updated *entity.SurveyDraft
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		draft, err := loadOwnedDraft(ctx, repoFactory, ref)
		if err != nil {
			return err
		}
		if draft.Status.IsTerminal() {
			return domainerrors.ErrDraftClosed.WithDetails(map[string]any{"status": draft.Status})
		}
		if ref.ExpectedVersion != nil && *ref.ExpectedVersion != draft.Version {
			return versionConflict(draft.Version)
		}

		now := srv.now().UTC()
		storedVersion := draft.Version
		if err := fn(repoFactory, draft, now); err != nil {
			return err
		}
		draft.Version = storedVersion + 1
		draft.UpdatedAt = now

		if err := repoFactory.DraftRepo().Update(ctx, draft, storedVersion); err != nil {
			switch {
			case errors.Is(err, repository.ErrDraftVersionMismatch):
				return versionConflict(storedVersion)
			case errors.Is(err, repository.ErrDraftNotFound):
				return errors.Wrapf(domainerrors.ErrDraftNotFound, "draft %s", ref.DraftID)
			default:
				return errors.Wrap(err, "failed to update survey draft")
			}
		}
		updated = draft

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// SaveStage merges stage data into the draft.
func (srv *draftService) SaveStage(ctx context.Context, input *usecase.SaveStageInput) (*entity.SurveyDraft, error) {
	var previous entity.DraftStatus
	draft, err := srv.mutate(ctx, input.DraftRef, func(_ repository.RepositoryFactory, draft *entity.SurveyDraft, now time.Time) error {
		if input.Stage < 1 || input.Stage > draft.TotalStages {
			return domainerrors.ErrValidationFailed.WithDetails(map[string]any{
				"stage":       input.Stage,
				"totalStages": draft.TotalStages,
			})
		}

		data := input.Data
		if data == nil {
			data = map[string]any{}
		}
		previous = draft.Status
		draft.MergeStage(input.Stage, data, now)

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to save draft stage", slog.String("draftID", input.DraftID.String()), slog.Int("stage", input.Stage), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("Draft stage saved",
		slog.String("draftID", draft.ID.String()),
		slog.Int("stage", input.Stage),
		slog.Int("progress", draft.Progress),
		slog.Int64("version", draft.Version),
	)
	if draft.Status != previous {
		srv.metrics.DraftTransition(string(draft.Status))
	}

	return draft, nil
}

// Complete materializes the draft from the merged stage data and active members. A draft
// linked to a family re-surveys that family; otherwise a new family is written.
func (srv *draftService) Complete(ctx context.Context, ref usecase.DraftRef) (*usecase.CompletionResult, error) {
	var (
		result   *usecase.SurveyResult
		reused   bool
		identity *familyIdentity
	)
	draft, err := srv.mutate(ctx, ref, func(repos repository.RepositoryFactory, draft *entity.SurveyDraft, now time.Time) error {
		required := srv.cfg.RequiredStageNumbers()
		if missing := draft.MissingStages(required); len(missing) > 0 {
			return domainerrors.ErrDraftIncomplete.WithDetails(map[string]any{"missingStages": missing})
		}

		input, err := surveyInputFromDraft(draft)
		if err != nil {
			return err
		}

		if draft.FamilyID != nil {
			family, err := findLinkedFamily(ctx, repos, *draft.FamilyID)
			if err != nil {
				return err
			}
			result, err = srv.writer.Resurvey(ctx, repos, family, input, srv.log(ctx))
			target := familyIdentityOf(family)
			identity, reused = &target, true
			if err != nil {
				return err
			}
		} else {
			target := identityOf(input)
			identity = &target
			if result, err = srv.writeNewFamily(ctx, repos, input); err != nil {
				return err
			}
			draft.FamilyID = &result.FamilyID
		}

		draft.Status = entity.DraftStatusCompleted
		draft.CompletedAt = &now

		return nil
	})
	if err != nil {
		if identity != nil {
			err = resolveDuplicateViolation(ctx, srv.txManager, srv.log(ctx), *identity, err)
		}
		if errors.Is(err, domainerrors.ErrDuplicateFamily) {
			srv.metrics.DuplicateRejected()
		}
		srv.log(ctx).Warn("Failed to complete survey draft", slog.String("draftID", ref.DraftID.String()), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Survey draft completed",
		slog.String("draftID", draft.ID.String()),
		slog.Int64("familyID", result.FamilyID),
		slog.Bool("reused", reused),
		slog.Int("membersCreated", result.MembersCreated),
		slog.Int("skippedMembers", len(result.SkippedMembers)),
		slog.String("transactionRef", result.TransactionRef),
	)
	srv.metrics.DraftTransition(string(draft.Status))
	if !reused {
		srv.metrics.SurveyCreated(result.MembersCreated, result.DeceasedCreated, len(result.SkippedMembers))
	}
	srv.dropAutoSave(ctx, draft.ID)
	publishSurveyEvent(ctx, srv.publisher, srv.log(ctx), &service.SurveyEvent{
		EventType:       constants.EventSurveyCompleted,
		TransactionRef:  result.TransactionRef,
		FamilyID:        result.FamilyID,
		FamilyCode:      result.FamilyCode,
		DraftID:         &draft.ID,
		MembersCreated:  result.MembersCreated,
		DeceasedCreated: result.DeceasedCreated,
		SkippedMembers:  len(result.SkippedMembers),
		OccurredAt:      srv.now().UTC(),
	})

	return &usecase.CompletionResult{Draft: draft, Survey: result, Reused: reused}, nil
}

func findLinkedFamily(ctx context.Context, repos repository.RepositoryFactory, familyID int64) (*entity.Family, error) {
	family, err := repos.FamilyRepo().FindByID(ctx, familyID)
	if err != nil {
		if errors.Is(err, repository.ErrFamilyNotFound) {
			return nil, errors.Wrapf(domainerrors.ErrSurveyNotFound, "family %d", familyID)
		}

		return nil, errors.Wrap(err, "failed to find family")
	}

	return family, nil
}

func (srv *draftService) writeNewFamily(ctx context.Context, repos repository.RepositoryFactory, input *usecase.SurveyInput) (*usecase.SurveyResult, error) {
	if err := validateSurveyInput(input); err != nil {
		return nil, err
	}
	identity := identityOf(input)
	if err := checkDuplicateFamily(ctx, repos.FamilyRepo(), identity.Surname, identity.Phone, identity.Address); err != nil {
		return nil, err
	}

	_, result, err := srv.writer.Write(ctx, repos, input, srv.log(ctx))

	return result, err
}

// surveyInputFromDraft decodes the merged stage data as a survey payload and appends the
// draft's active members; members tagged "kind": "deceased" go to the deceased list.
func surveyInputFromDraft(draft *entity.SurveyDraft) (*usecase.SurveyInput, error) {
	merged := draft.MergedData()

	members, _ := merged["members"].([]any)
	deceased, _ := merged["deceased"].([]any)
	for _, member := range draft.ActiveMembers() {
		data := maps.Clone(member.Data)
		if kind, _ := data["kind"].(string); strings.EqualFold(kind, memberKindDeceased) {
			deceased = append(deceased, data)

			continue
		}
		members = append(members, data)
	}
	merged["members"] = members
	merged["deceased"] = deceased

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode draft data")
	}

	input := &usecase.SurveyInput{}
	if err := json.Unmarshal(raw, input); err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"draft": err.Error()})
	}
	if strings.TrimSpace(draft.Observations) != "" {
		input.Observations = strings.TrimSpace(strings.Join([]string{input.Observations, draft.Observations}, "\n"))
	}
	if draft.OwnerID != uuid.Nil {
		owner := draft.OwnerID
		input.CreatedBy = &owner
	}

	return input, nil
}

// Cancel abandons the draft.
func (srv *draftService) Cancel(ctx context.Context, input *usecase.CancelDraftInput) (*entity.SurveyDraft, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	draft, err := srv.mutate(ctx, input.DraftRef, func(_ repository.RepositoryFactory, draft *entity.SurveyDraft, now time.Time) error {
		draft.AppendObservation(fmt.Sprintf("%s cancelado: %s", now.Format(time.RFC3339), reason))
		draft.Status = entity.DraftStatusCancelled
		draft.CancelledAt = &now

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to cancel survey draft", slog.String("draftID", input.DraftID.String()), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Survey draft cancelled", slog.String("draftID", draft.ID.String()))
	srv.metrics.DraftTransition(string(draft.Status))
	srv.dropAutoSave(ctx, draft.ID)

	return draft, nil
}

// SaveMember creates a member, or replaces the data of an existing one.
func (srv *draftService) SaveMember(ctx context.Context, input *usecase.SaveMemberInput) (*usecase.DraftMemberResult, error) {
	var member entity.DraftMember
	draft, err := srv.mutate(ctx, input.DraftRef, func(_ repository.RepositoryFactory, draft *entity.SurveyDraft, now time.Time) error {
		data := maps.Clone(input.Data)
		if data == nil {
			data = map[string]any{}
		}

		if input.MemberID == nil {
			member = entity.DraftMember{ID: uuid.New(), Data: data, UpdatedAt: now}
			draft.Members = append(draft.Members, member)

			return nil
		}

		idx, ok := draft.FindMember(*input.MemberID)
		if !ok || draft.Members[idx].Deleted {
			return errors.Wrapf(domainerrors.ErrMemberNotFound, "member %s", *input.MemberID)
		}
		draft.Members[idx].Data = data
		draft.Members[idx].UpdatedAt = now
		member = draft.Members[idx]

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &usecase.DraftMemberResult{Draft: draft, Member: member}, nil
}

// DeleteMember flags the member as deleted; it is excluded from completion until restored.
func (srv *draftService) DeleteMember(ctx context.Context, input *usecase.MemberRefInput) (*usecase.DraftMemberResult, error) {
	return srv.setMemberDeleted(ctx, input, true)
}

// RestoreMember clears the deleted flag.
func (srv *draftService) RestoreMember(ctx context.Context, input *usecase.MemberRefInput) (*usecase.DraftMemberResult, error) {
	return srv.setMemberDeleted(ctx, input, false)
}

func (srv *draftService) setMemberDeleted(ctx context.Context, input *usecase.MemberRefInput, deleted bool) (*usecase.DraftMemberResult, error) {
	var member entity.DraftMember
	draft, err := srv.mutate(ctx, input.DraftRef, func(_ repository.RepositoryFactory, draft *entity.SurveyDraft, now time.Time) error {
		idx, ok := draft.FindMember(input.MemberID)
		if !ok {
			return errors.Wrapf(domainerrors.ErrMemberNotFound, "member %s", input.MemberID)
		}

		m := &draft.Members[idx]
		m.Deleted = deleted
		m.DeletedAt = nil
		if deleted {
			m.DeletedAt = &now
		}
		m.UpdatedAt = now
		member = *m

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &usecase.DraftMemberResult{Draft: draft, Member: member}, nil
}

// SaveAutoSave stores the client snapshot of an open draft.
func (srv *draftService) SaveAutoSave(ctx context.Context, ref usecase.DraftRef, payload json.RawMessage) (*service.AutoSave, error) {
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"payload": "must be valid JSON"})
	}

	draft, err := srv.GetDraft(ctx, ref)
	if err != nil {
		return nil, err
	}
	if draft.Status.IsTerminal() {
		return nil, domainerrors.ErrDraftClosed.WithDetails(map[string]any{"status": draft.Status})
	}

	snapshot := &service.AutoSave{
		DraftID: draft.ID,
		Payload: payload,
		SavedAt: srv.now().UTC(),
	}
	if err := srv.autoSave.Save(ctx, snapshot); err != nil {
		srv.log(ctx).Error("Failed to store auto-save", slog.String("draftID", draft.ID.String()), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to store auto-save")
	}

	return snapshot, nil
}

// GetAutoSave returns the latest client snapshot of the draft.
func (srv *draftService) GetAutoSave(ctx context.Context, ref usecase.DraftRef) (*service.AutoSave, error) {
	if _, err := srv.GetDraft(ctx, ref); err != nil {
		return nil, err
	}

	snapshot, err := srv.autoSave.Load(ctx, ref.DraftID)
	if err != nil {
		if errors.Is(err, service.ErrAutoSaveNotFound) {
			return nil, errors.Wrapf(domainerrors.ErrAutoSaveNotFound, "draft %s", ref.DraftID)
		}

		return nil, errors.Wrap(err, "failed to load auto-save")
	}

	return snapshot, nil
}

func (srv *draftService) dropAutoSave(ctx context.Context, draftID uuid.UUID) {
	if err := srv.autoSave.Delete(ctx, draftID); err != nil {
		srv.log(ctx).Warn("Failed to drop auto-save", slog.String("draftID", draftID.String()), slog.Any("error", err))
	}
}
