// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"censo/config"
	deliverycontext "censo/internal/delivery/context"
	"censo/internal/domain/catalog"
	"censo/internal/domain/constants"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/domain/repository"
	"censo/internal/domain/service"
	"censo/internal/usecase"
	"censo/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// surveyService implements the SurveyUsecase interface.
type surveyService struct {
	txManager repository.TransactionManager
	writer    *surveyWriter
	publisher service.EventPublisher
	qrCode    service.QRCodeService
	exporter  service.SurveyExporter
	metrics   service.SurveyMetrics
	cfg       config.SurveyConfig
	now       func() time.Time
	logger    *slog.Logger
}

// SurveyServiceParams holds dependencies for SurveyService, injected by Fx.
type SurveyServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Publisher service.EventPublisher
	QRCode    service.QRCodeService
	Exporter  service.SurveyExporter
	Metrics   service.SurveyMetrics
	Config    *config.Config
	Logger    *slog.Logger
}

// NewSurveyService is the constructor for surveyService.
func NewSurveyService(params SurveyServiceParams) usecase.SurveyUsecase {
	identities := newIdentityGenerator(params.Config.Survey.IdentityMaxAttempts, nil, nil)

	return &surveyService{
		txManager: params.TxManager,
		writer:    newSurveyWriter(identities, nil, nil),
		publisher: params.Publisher,
		qrCode:    params.QRCode,
		exporter:  params.Exporter,
		metrics:   params.Metrics,
		cfg:       params.Config.Survey,
		now:       time.Now,
		logger:    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *surveyService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateSurvey validates, checks for duplicates and writes the interview in one transaction.
func (srv *surveyService) CreateSurvey(ctx context.Context, input *usecase.SurveyInput) (*usecase.SurveyResult, error) {
	if err := validateSurveyInput(input); err != nil {
		return nil, err
	}
	identity := identityOf(input)

	// Pre-check; the write transaction checks again.
	if err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return checkDuplicateFamily(ctx, repoFactory.FamilyRepo(), identity.Surname, identity.Phone, identity.Address)
	}); err != nil {
		return nil, srv.rejectWrite(ctx, identity, err)
	}

	var (
		family *entity.Family
		result *usecase.SurveyResult
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := checkDuplicateFamily(ctx, repoFactory.FamilyRepo(), identity.Surname, identity.Phone, identity.Address); err != nil {
			return err
		}

		var writeErr error
		family, result, writeErr = srv.writer.Write(ctx, repoFactory, input, srv.log(ctx))

		return writeErr
	})
	if err != nil {
		return nil, srv.rejectWrite(ctx, identity, err)
	}

	srv.log(ctx).Info("Survey created",
		slog.Int64("familyID", family.ID),
		slog.String("familyCode", family.Code),
		slog.Int("membersCreated", result.MembersCreated),
		slog.Int("deceasedCreated", result.DeceasedCreated),
		slog.Int("skippedMembers", len(result.SkippedMembers)),
		slog.String("transactionRef", result.TransactionRef),
	)
	srv.metrics.SurveyCreated(result.MembersCreated, result.DeceasedCreated, len(result.SkippedMembers))
	publishSurveyEvent(ctx, srv.publisher, srv.log(ctx), &service.SurveyEvent{
		EventType:       constants.EventSurveyCreated,
		TransactionRef:  result.TransactionRef,
		FamilyID:        result.FamilyID,
		FamilyCode:      result.FamilyCode,
		MembersCreated:  result.MembersCreated,
		DeceasedCreated: result.DeceasedCreated,
		SkippedMembers:  len(result.SkippedMembers),
		OccurredAt:      srv.now().UTC(),
	})

	return result, nil
}

// rejectWrite classifies a failed survey write.
func (srv *surveyService) rejectWrite(ctx context.Context, identity familyIdentity, err error) error {
	err = resolveDuplicateViolation(ctx, srv.txManager, srv.log(ctx), identity, err)
	if errors.Is(err, domainerrors.ErrDuplicateFamily) {
		srv.metrics.DuplicateRejected()
		srv.log(ctx).Info("Duplicate family rejected", slog.String("surname", identity.Surname))

		return err
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		srv.log(ctx).Warn("Survey write rejected", slog.String("code", appErr.ErrorCode()), slog.Any("error", err))

		return err
	}

	srv.log(ctx).Error("Survey transaction failed", slog.Any("error", err))

	return errors.Wrap(domainerrors.ErrTransactionFailed.WithDetails(err.Error()), "failed to store survey")
}

// GetSurvey loads the family and everything hanging from it in one read transaction.
func (srv *surveyService) GetSurvey(ctx context.Context, familyID int64) (*usecase.SurveyView, error) {
	var view *usecase.SurveyView
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		view, err = srv.loadSurvey(ctx, repoFactory, familyID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

func (srv *surveyService) loadSurvey(ctx context.Context, repos repository.RepositoryFactory, familyID int64) (*usecase.SurveyView, error) {
	family, err := repos.FamilyRepo().FindByID(ctx, familyID)
	if err != nil {
		if errors.Is(err, repository.ErrFamilyNotFound) {
			return nil, errors.Wrapf(domainerrors.ErrSurveyNotFound, "family %d", familyID)
		}

		return nil, errors.Wrap(err, "failed to find family")
	}

	persons, err := repos.PersonRepo().FindByFamily(ctx, familyID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find family members")
	}

	view := &usecase.SurveyView{
		FamilyID:      family.ID,
		Code:          family.Code,
		Surname:       family.Surname,
		Address:       family.Address,
		Phone:         family.Phone,
		Email:         family.Email,
		HouseholdSize: family.HouseholdSize,
		HousingType:   family.HousingTypeLabel,
		SurveyStatus:  string(family.SurveyStatus),
		SurveyCount:   family.SurveyCount,
		LastSurveyAt:  family.LastSurveyAt,
		Observations:  family.Observations,
		Location: usecase.LocationView{
			Sector:       srv.lookupLocation(ctx, repos, entity.LocationSector, family.SectorID),
			Vereda:       srv.lookupLocation(ctx, repos, entity.LocationVereda, family.VeredaID),
			Municipality: srv.lookupLocation(ctx, repos, entity.LocationMunicipality, family.MunicipalityID),
			Parish:       srv.lookupLocation(ctx, repos, entity.LocationParish, family.ParishID),
		},
		Members:   []usecase.MemberView{},
		Deceased:  []usecase.DeceasedView{},
		Utilities: srv.loadUtilities(ctx, repos, familyID),
		CreatedAt: family.CreatedAt,
		UpdatedAt: family.UpdatedAt,
	}

	for _, person := range persons {
		if person.IsDeceased() {
			view.Deceased = append(view.Deceased, decodeDeceased(person))

			continue
		}
		view.Members = append(view.Members, memberView(person))
	}

	return view, nil
}

// lookupLocation resolves an optional location reference. Failures degrade to nil; the
// savepoint keeps the surrounding read transaction usable after a failed statement.
func (srv *surveyService) lookupLocation(ctx context.Context, repos repository.RepositoryFactory, kind entity.LocationKind, id *int64) *entity.LocationRef {
	if id == nil {
		return nil
	}

	savepoint := "location_" + string(kind)
	if err := repos.SavePoint(ctx, savepoint); err != nil {
		srv.log(ctx).Warn("Failed to create savepoint for location lookup", slog.String("kind", string(kind)), slog.Any("error", err))

		return nil
	}

	ref, err := repos.LocationRepo().FindByID(ctx, kind, *id)
	if err == nil {
		return ref
	}

	if !errors.Is(err, repository.ErrLocationNotFound) {
		srv.log(ctx).Warn("Location lookup failed", slog.String("kind", string(kind)), slog.Int64("id", *id), slog.Any("error", err))
	}
	if rbErr := repos.RollbackTo(ctx, savepoint); rbErr != nil {
		srv.log(ctx).Warn("Failed to roll back location lookup", slog.String("kind", string(kind)), slog.Any("error", rbErr))
	}

	return nil
}

// loadUtilities reads each join table behind its own savepoint; a category that cannot be
// read stays empty without hiding the others.
func (srv *surveyService) loadUtilities(ctx context.Context, repos repository.RepositoryFactory, familyID int64) usecase.UtilitiesView {
	utilities := usecase.UtilitiesView{
		Disposal: []usecase.CatalogRef{},
		Water:    []usecase.CatalogRef{},
		Housing:  []usecase.CatalogRef{},
	}

	for _, kind := range entity.AssociationKinds {
		associations := srv.findAssociations(ctx, repos, kind, familyID)
		for _, a := range associations {
			switch a.Kind {
			case entity.AssociationDisposal:
				utilities.Disposal = append(utilities.Disposal, usecase.CatalogRef{ID: a.CatalogID, Label: catalog.Label(catalog.KindDisposalMethod, a.CatalogID)})
			case entity.AssociationWater:
				utilities.Water = append(utilities.Water, usecase.CatalogRef{ID: a.CatalogID, Label: catalog.Label(catalog.KindWaterSystem, a.CatalogID)})
			case entity.AssociationHousing:
				utilities.Housing = append(utilities.Housing, usecase.CatalogRef{ID: a.CatalogID, Label: catalog.Label(catalog.KindHousingType, a.CatalogID)})
			}
		}
	}

	return utilities
}

func (srv *surveyService) findAssociations(ctx context.Context, repos repository.RepositoryFactory, kind entity.AssociationKind, familyID int64) []entity.FamilyAssociation {
	savepoint := "utilities_" + string(kind)
	if err := repos.SavePoint(ctx, savepoint); err != nil {
		srv.log(ctx).Warn("Failed to create savepoint for utilities", slog.String("kind", string(kind)), slog.Any("error", err))

		return nil
	}

	associations, err := repos.AssociationRepo().FindByFamily(ctx, kind, familyID)
	if err == nil {
		return associations
	}

	if errors.Is(err, repository.ErrAssociationTableMissing) {
		srv.log(ctx).Warn("Association table missing, skipping", slog.String("kind", string(kind)))
	} else {
		srv.log(ctx).Warn("Failed to load family utilities", slog.Int64("familyID", familyID), slog.String("kind", string(kind)), slog.Any("error", err))
	}
	if rbErr := repos.RollbackTo(ctx, savepoint); rbErr != nil {
		srv.log(ctx).Warn("Failed to roll back utilities lookup", slog.String("kind", string(kind)), slog.Any("error", rbErr))
	}

	return nil
}

func memberView(p *entity.Person) usecase.MemberView {
	return usecase.MemberView{
		ID:                   p.ID,
		FullName:             p.FullName(),
		FirstName:            p.FirstName,
		MiddleName:           p.MiddleName,
		FirstSurname:         p.FirstSurname,
		SecondSurname:        p.SecondSurname,
		BirthDate:            p.BirthDate,
		Phone:                p.Phone,
		Email:                p.Email,
		IdentificationType:   catalogRef(catalog.KindIdentificationType, p.IdentificationTypeID),
		IdentificationNumber: p.IdentificationNumber,
		Sex:                  catalogRef(catalog.KindSex, p.SexID),
		CivilStatus:          catalogRef(catalog.KindCivilStatus, p.CivilStatusID),
		EducationLevel:       catalogRef(catalog.KindEducationLevel, p.EducationLevelID),
		LeadershipRole:       p.LeadershipRole,
		ShirtSize:            p.ShirtSize,
		PantsSize:            p.PantsSize,
		ShoeSize:             p.ShoeSize,
		HealthNeeds:          p.HealthNeeds,
	}
}

// ListSurveys returns one page of survey summaries with member counts.
func (srv *surveyService) ListSurveys(ctx context.Context, filter usecase.SurveyListFilter) (*usecase.SurveyPage, error) {
	page, limit := srv.pageBounds(filter)

	var (
		summaries []usecase.SurveySummary
		total     int64
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		summaries, total, err = listSummaries(ctx, repoFactory, filter, (page-1)*limit, limit)

		return err
	})
	if err != nil {
		srv.log(ctx).Error("Failed to list surveys", slog.Any("error", err))

		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	return &usecase.SurveyPage{
		Items: summaries,
		Pagination: usecase.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (srv *surveyService) pageBounds(filter usecase.SurveyListFilter) (page, limit int) {
	page = max(filter.Page, 1)
	limit = filter.Limit
	if limit <= 0 {
		limit = srv.cfg.DefaultPageSize
	}
	limit = min(limit, srv.cfg.MaxPageSize)

	return page, limit
}

func listSummaries(ctx context.Context, repos repository.RepositoryFactory, filter usecase.SurveyListFilter, offset, limit int) ([]usecase.SurveySummary, int64, error) {
	families, total, err := repos.FamilyRepo().List(ctx, repository.FamilyFilter{
		SectorID:       filter.SectorID,
		MunicipalityID: filter.MunicipalityID,
		Surname:        filter.Surname,
		Offset:         offset,
		Limit:          limit,
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list families")
	}

	summaries := make([]usecase.SurveySummary, 0, len(families))
	for _, family := range families {
		living, deceased, err := repos.PersonRepo().CountByFamily(ctx, family.ID)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "failed to count members of family %d", family.ID)
		}

		summaries = append(summaries, usecase.SurveySummary{
			FamilyID:        family.ID,
			Code:            family.Code,
			Surname:         family.Surname,
			Address:         family.Address,
			Phone:           family.Phone,
			HouseholdSize:   family.HouseholdSize,
			LivingMembers:   living,
			DeceasedMembers: deceased,
			SurveyStatus:    string(family.SurveyStatus),
			SurveyCount:     family.SurveyCount,
			LastSurveyAt:    family.LastSurveyAt,
			SectorID:        family.SectorID,
			MunicipalityID:  family.MunicipalityID,
		})
	}

	return summaries, total, nil
}

// DeleteSurvey removes the family and its dependents in one transaction:
// persons, each association table, draft links and finally the family row.
func (srv *surveyService) DeleteSurvey(ctx context.Context, familyID int64) (*usecase.DeletionResult, error) {
	result := &usecase.DeletionResult{
		FamilyID:       familyID,
		TransactionRef: uuid.NewString(),
	}

	var familyCode string
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		family, err := repoFactory.FamilyRepo().FindByID(ctx, familyID)
		if err != nil {
			if errors.Is(err, repository.ErrFamilyNotFound) {
				return errors.Wrapf(domainerrors.ErrSurveyNotFound, "family %d", familyID)
			}

			return errors.Wrap(err, "failed to find family")
		}
		familyCode = family.Code

		if result.PersonsRemoved, err = repoFactory.PersonRepo().DeleteByFamily(ctx, familyID); err != nil {
			return errors.Wrap(err, "failed to delete family members")
		}

		for _, kind := range entity.AssociationKinds {
			removed, err := unlinkAssociations(ctx, repoFactory, srv.log(ctx), kind, familyID)
			if err != nil {
				return err
			}
			switch kind {
			case entity.AssociationDisposal:
				result.DisposalLinksRemoved = removed
			case entity.AssociationWater:
				result.WaterLinksRemoved = removed
			case entity.AssociationHousing:
				result.HousingLinksRemoved = removed
			}
		}

		if result.DraftsDetached, err = repoFactory.DraftRepo().DetachFamily(ctx, familyID); err != nil {
			return errors.Wrap(err, "failed to detach survey drafts")
		}

		deleted, err := repoFactory.FamilyRepo().Delete(ctx, familyID)
		if err != nil {
			return errors.Wrap(err, "failed to delete family")
		}
		if deleted == 0 {
			return errors.Wrapf(domainerrors.ErrSurveyNotFound, "family %d", familyID)
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Survey deletion failed", slog.Int64("familyID", familyID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Survey deleted",
		slog.Int64("familyID", familyID),
		slog.Int64("personsRemoved", result.PersonsRemoved),
		slog.String("transactionRef", result.TransactionRef),
	)
	srv.metrics.SurveyDeleted()
	publishSurveyEvent(ctx, srv.publisher, srv.log(ctx), &service.SurveyEvent{
		EventType:      constants.EventSurveyDeleted,
		TransactionRef: result.TransactionRef,
		FamilyID:       familyID,
		FamilyCode:     familyCode,
		OccurredAt:     srv.now().UTC(),
	})

	return result, nil
}

// FamilyCard renders the family's door-card QR code.
func (srv *surveyService) FamilyCard(ctx context.Context, familyID int64) ([]byte, error) {
	var family *entity.Family
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		family, err = repoFactory.FamilyRepo().FindByID(ctx, familyID)

		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrFamilyNotFound) {
			return nil, errors.Wrapf(domainerrors.ErrSurveyNotFound, "family %d", familyID)
		}

		return nil, errors.Wrap(err, "failed to find family")
	}

	png, err := srv.qrCode.GenerateFamilyCard(family.ID, family.Code)
	if err != nil {
		srv.log(ctx).Error("Failed to generate family card", slog.Int64("familyID", familyID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to generate family card")
	}

	return png, nil
}

// ScanFamilyCard resolves scanned door-card text. A card whose code does not match the
// stored family is treated as unknown.
func (srv *surveyService) ScanFamilyCard(ctx context.Context, qrData string) (*usecase.SurveyView, error) {
	card, err := srv.qrCode.ParseFamilyCard(qrData)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed.WithDetails(map[string]any{"qrData": err.Error()}), "invalid family card")
	}

	view, err := srv.GetSurvey(ctx, card.FamilyID)
	if err != nil {
		return nil, err
	}
	if view.Code != card.Code {
		srv.log(ctx).Warn("Family card code mismatch", slog.Int64("familyID", card.FamilyID), slog.String("cardCode", card.Code))

		return nil, errors.Wrapf(domainerrors.ErrSurveyNotFound, "family card %s", card.Code)
	}

	return view, nil
}

// ExportSurveys renders the filtered surveys, capped at the configured row limit.
func (srv *surveyService) ExportSurveys(ctx context.Context, filter usecase.SurveyListFilter) (*usecase.SurveyExport, error) {
	start := time.Now()
	var rows []service.SurveyExportRow
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		summaries, total, err := listSummaries(ctx, repoFactory, filter, 0, srv.cfg.ExportMaxRows)
		if err != nil {
			return err
		}
		if total > int64(len(summaries)) {
			srv.log(ctx).Warn("Survey export truncated", slog.Int64("total", total), slog.Int("exported", len(summaries)))
		}

		names := make(map[string]string)
		locationName := func(kind entity.LocationKind, id *int64) string {
			if id == nil {
				return ""
			}
			key := fmt.Sprintf("%s:%d", kind, *id)
			if name, ok := names[key]; ok {
				return name
			}
			name := ""
			if ref := srv.lookupLocation(ctx, repoFactory, kind, id); ref != nil {
				name = ref.Name
			}
			names[key] = name

			return name
		}

		rows = make([]service.SurveyExportRow, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, service.SurveyExportRow{
				FamilyID:        s.FamilyID,
				Code:            s.Code,
				Surname:         s.Surname,
				Address:         s.Address,
				Phone:           s.Phone,
				Sector:          locationName(entity.LocationSector, s.SectorID),
				Municipality:    locationName(entity.LocationMunicipality, s.MunicipalityID),
				HouseholdSize:   s.HouseholdSize,
				LivingMembers:   s.LivingMembers,
				DeceasedMembers: s.DeceasedMembers,
				SurveyStatus:    s.SurveyStatus,
				SurveyCount:     s.SurveyCount,
				LastSurveyAt:    s.LastSurveyAt,
			})
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to load surveys for export", slog.Any("error", err))

		return nil, err
	}

	content, err := srv.exporter.Export(rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render survey export")
	}

	checksum := util.Checksum(content)
	srv.log(ctx).Info("Survey export rendered",
		slog.Int("rows", len(rows)),
		slog.String("size", util.FormatBytes(int64(len(content)))),
		slog.String("elapsed", util.FormatDuration(time.Since(start))),
		slog.String("checksum", checksum),
	)

	return &usecase.SurveyExport{
		FileName:    fmt.Sprintf("encuestas-%s.%s", srv.now().Format("20060102"), srv.exporter.FileExtension()),
		ContentType: srv.exporter.ContentType(),
		Content:     content,
		Checksum:    checksum,
	}, nil
}

// publishSurveyEvent sends the event after commit. The write already succeeded, so a
// publish failure is only logged.
func publishSurveyEvent(ctx context.Context, publisher service.EventPublisher, logger *slog.Logger, event *service.SurveyEvent) {
	if publisher == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = deliverycontext.GetRequestIDFromContext(ctx)
	}

	if err := publisher.PublishSurveyEvent(ctx, event); err != nil {
		logger.Warn("Failed to publish survey event",
			slog.String("eventType", event.EventType),
			slog.String("transactionRef", event.TransactionRef),
			slog.Any("error", err),
		)
	}
}
