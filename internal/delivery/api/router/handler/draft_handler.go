package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"censo/internal/delivery/api/middleware"
	"censo/internal/delivery/api/response"
	"censo/internal/domain/entity"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// DraftHandlerParams holds dependencies for DraftHandler, injected by Fx.
type DraftHandlerParams struct {
	fx.In

	DraftUC usecase.DraftUsecase
	Logger  *slog.Logger
}

// DraftHandler serves the stage-based survey workflow
type DraftHandler struct {
	draftUC usecase.DraftUsecase
	logger  *slog.Logger
}

// NewDraftHandler is the constructor for DraftHandler
func NewDraftHandler(params DraftHandlerParams) *DraftHandler {
	return &DraftHandler{
		draftUC: params.DraftUC,
		logger:  params.Logger,
	}
}

// CreateDraftRequest optionally links the new draft to an existing family
type CreateDraftRequest struct {
	FamilyID *int64 `json:"familyId,omitempty" validate:"omitempty,min=1"`
}

// VersionedRequest carries the optional optimistic-lock version of a mutation
type VersionedRequest struct {
	ExpectedVersion *int64 `json:"expectedVersion,omitempty" validate:"omitempty,min=1"`
}

// SaveStageRequest is the payload of one form screen
type SaveStageRequest struct {
	VersionedRequest
	Data map[string]any `json:"data" validate:"required"`
}

// CancelDraftRequest abandons a draft
type CancelDraftRequest struct {
	VersionedRequest
	Reason string `json:"reason" validate:"max=500"`
}

// SaveMemberRequest is the data of one household member
type SaveMemberRequest struct {
	VersionedRequest
	Data map[string]any `json:"data" validate:"required"`
}

// DraftResponse is the JSON shape of a survey draft
type DraftResponse struct {
	ID           uuid.UUID            `json:"id"`
	OwnerID      uuid.UUID            `json:"ownerId"`
	Status       entity.DraftStatus   `json:"status"`
	CurrentStage int                  `json:"currentStage"`
	TotalStages  int                  `json:"totalStages"`
	Progress     int                  `json:"progress"`
	Version      int64                `json:"version"`
	FamilyID     *int64               `json:"familyId,omitempty"`
	Observations string               `json:"observations,omitempty"`
	Stages       []entity.DraftStage  `json:"stages"`
	Members      []entity.DraftMember `json:"members"`
	CompletedAt  *time.Time           `json:"completedAt,omitempty"`
	CancelledAt  *time.Time           `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// DraftMemberResponse is a draft after a member mutation
type DraftMemberResponse struct {
	Draft  *DraftResponse     `json:"draft"`
	Member entity.DraftMember `json:"member"`
}

// CompletionResponse is a completed draft and the survey it produced
type CompletionResponse struct {
	Draft  *DraftResponse        `json:"draft"`
	Survey *usecase.SurveyResult `json:"survey"`
	Reused bool                  `json:"reused"`
}

func newDraftResponse(d *entity.SurveyDraft) *DraftResponse {
	return &DraftResponse{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Status:       d.Status,
		CurrentStage: d.CurrentStage,
		TotalStages:  d.TotalStages,
		Progress:     d.Progress,
		Version:      d.Version,
		FamilyID:     d.FamilyID,
		Observations: d.Observations,
		Stages:       d.Stages,
		Members:      d.Members,
		CompletedAt:  d.CompletedAt,
		CancelledAt:  d.CancelledAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// CreateDraft starts a new staged survey
func (h *DraftHandler) CreateDraft(c echo.Context) error {
	var req CreateDraftRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	draft, err := h.draftUC.CreateDraft(c.Request().Context(), &usecase.CreateDraftInput{
		OwnerID:  interviewerID(c),
		FamilyID: req.FamilyID,
	})
	if err != nil {
		return err
	}

	return draftSuccess(c, http.StatusCreated, draft)
}

// ListDrafts returns the caller's drafts
func (h *DraftHandler) ListDrafts(c echo.Context) error {
	drafts, err := h.draftUC.ListDrafts(c.Request().Context(), interviewerID(c))
	if err != nil {
		return err
	}

	items := make([]*DraftResponse, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, newDraftResponse(d))
	}

	return response.Success(c, http.StatusOK, items)
}

// GetDraft returns one draft
func (h *DraftHandler) GetDraft(c echo.Context) error {
	ref, err := draftRef(c, nil)
	if err != nil {
		return err
	}

	draft, err := h.draftUC.GetDraft(c.Request().Context(), ref)
	if err != nil {
		return err
	}

	return draftSuccess(c, http.StatusOK, draft)
}

// SaveStage merges one stage of the form into the draft
func (h *DraftHandler) SaveStage(c echo.Context) error {
	var req SaveStageRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	stage, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return domainerrors.ErrValidationFailed.WithDetails(map[string]any{"stage": c.Param("n")})
	}

	ref, err := draftRef(c, req.ExpectedVersion)
	if err != nil {
		return err
	}

	draft, err := h.draftUC.SaveStage(c.Request().Context(), &usecase.SaveStageInput{
		DraftRef: ref,
		Stage:    stage,
		Data:     req.Data,
	})
	if err != nil {
		return err
	}

	return draftSuccess(c, http.StatusOK, draft)
}

// Complete materializes the draft into a family
func (h *DraftHandler) Complete(c echo.Context) error {
	var req VersionedRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	ref, err := draftRef(c, req.ExpectedVersion)
	if err != nil {
		return err
	}

	result, err := h.draftUC.Complete(c.Request().Context(), ref)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	return response.Versioned(c, status, result.Draft.Version, &CompletionResponse{
		Draft:  newDraftResponse(result.Draft),
		Survey: result.Survey,
		Reused: result.Reused,
	})
}

// Cancel abandons the draft
func (h *DraftHandler) Cancel(c echo.Context) error {
	var req CancelDraftRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ref, err := draftRef(c, req.ExpectedVersion)
	if err != nil {
		return err
	}

	draft, err := h.draftUC.Cancel(c.Request().Context(), &usecase.CancelDraftInput{
		DraftRef: ref,
		Reason:   req.Reason,
	})
	if err != nil {
		return err
	}

	return draftSuccess(c, http.StatusOK, draft)
}

// CreateMember adds a household member to the draft
func (h *DraftHandler) CreateMember(c echo.Context) error {
	return h.saveMember(c, http.StatusCreated, nil)
}

// UpdateMember replaces the data of a draft member
func (h *DraftHandler) UpdateMember(c echo.Context) error {
	memberID, err := parseMemberID(c)
	if err != nil {
		return err
	}

	return h.saveMember(c, http.StatusOK, &memberID)
}

func (h *DraftHandler) saveMember(c echo.Context, status int, memberID *uuid.UUID) error {
	var req SaveMemberRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ref, err := draftRef(c, req.ExpectedVersion)
	if err != nil {
		return err
	}

	result, err := h.draftUC.SaveMember(c.Request().Context(), &usecase.SaveMemberInput{
		DraftRef: ref,
		MemberID: memberID,
		Data:     req.Data,
	})
	if err != nil {
		return err
	}

	return memberSuccess(c, status, result)
}

// DeleteMember soft-deletes a draft member
func (h *DraftHandler) DeleteMember(c echo.Context) error {
	input, err := memberRef(c)
	if err != nil {
		return err
	}

	result, err := h.draftUC.DeleteMember(c.Request().Context(), input)
	if err != nil {
		return err
	}

	return memberSuccess(c, http.StatusOK, result)
}

// RestoreMember undoes a member soft delete
func (h *DraftHandler) RestoreMember(c echo.Context) error {
	input, err := memberRef(c)
	if err != nil {
		return err
	}

	result, err := h.draftUC.RestoreMember(c.Request().Context(), input)
	if err != nil {
		return err
	}

	return memberSuccess(c, http.StatusOK, result)
}

// SaveAutoSave stores the client's form snapshot as-is
func (h *DraftHandler) SaveAutoSave(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errors.WithStack(err)
	}

	ref, err := draftRef(c, nil)
	if err != nil {
		return err
	}

	snapshot, err := h.draftUC.SaveAutoSave(c.Request().Context(), ref, json.RawMessage(payload))
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, snapshot)
}

// GetAutoSave returns the latest form snapshot
func (h *DraftHandler) GetAutoSave(c echo.Context) error {
	ref, err := draftRef(c, nil)
	if err != nil {
		return err
	}

	snapshot, err := h.draftUC.GetAutoSave(c.Request().Context(), ref)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, snapshot)
}

func draftSuccess(c echo.Context, status int, draft *entity.SurveyDraft) error {
	return response.Versioned(c, status, draft.Version, newDraftResponse(draft))
}

func memberSuccess(c echo.Context, status int, result *usecase.DraftMemberResult) error {
	return response.Versioned(c, status, result.Draft.Version, &DraftMemberResponse{
		Draft:  newDraftResponse(result.Draft),
		Member: result.Member,
	})
}

// interviewerID is the authenticated interviewer, or uuid.Nil when auth is disabled.
func interviewerID(c echo.Context) uuid.UUID {
	if userID, ok := middleware.GetUserID(c); ok {
		return userID
	}

	return uuid.Nil
}

// draftRef resolves the draft addressed by the request. The body version wins over If-Match.
func draftRef(c echo.Context, bodyVersion *int64) (usecase.DraftRef, error) {
	draftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return usecase.DraftRef{}, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"id": c.Param("id")})
	}

	ref := usecase.DraftRef{
		OwnerID:         interviewerID(c),
		DraftID:         draftID,
		ExpectedVersion: bodyVersion,
	}
	if ref.ExpectedVersion == nil {
		version, err := ifMatchVersion(c.Request().Header.Get(echo.HeaderIfMatch))
		if err != nil {
			return usecase.DraftRef{}, err
		}
		ref.ExpectedVersion = version
	}

	return ref, nil
}

// ifMatchVersion parses an If-Match header such as `"7"` or `W/"7"`.
func ifMatchVersion(header string) (*int64, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return nil, nil
	}

	raw := strings.Trim(strings.TrimPrefix(header, "W/"), `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version <= 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"ifMatch": header})
	}

	return &version, nil
}

func parseMemberID(c echo.Context) (uuid.UUID, error) {
	memberID, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		return uuid.Nil, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"memberId": c.Param("memberId")})
	}

	return memberID, nil
}

func memberRef(c echo.Context) (*usecase.MemberRefInput, error) {
	memberID, err := parseMemberID(c)
	if err != nil {
		return nil, err
	}

	ref, err := draftRef(c, nil)
	if err != nil {
		return nil, err
	}

	return &usecase.MemberRefInput{DraftRef: ref, MemberID: memberID}, nil
}
