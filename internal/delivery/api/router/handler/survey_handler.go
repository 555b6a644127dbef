// Package handler contains the echo handlers of the survey API.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"censo/internal/delivery/api/middleware"
	"censo/internal/delivery/api/response"
	domainerrors "censo/internal/domain/errors"
	"censo/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// SurveyHandlerParams holds dependencies for SurveyHandler, injected by Fx.
type SurveyHandlerParams struct {
	fx.In

	SurveyUC usecase.SurveyUsecase
	Logger   *slog.Logger
}

// SurveyHandler serves one-shot surveys and the stored family records.
type SurveyHandler struct {
	surveyUC usecase.SurveyUsecase
	logger   *slog.Logger
}

// NewSurveyHandler is the constructor for SurveyHandler
func NewSurveyHandler(params SurveyHandlerParams) *SurveyHandler {
	return &SurveyHandler{
		surveyUC: params.SurveyUC,
		logger:   params.Logger,
	}
}

// ScanRequest carries the text read from a door-card QR code
type ScanRequest struct {
	QRData string `json:"qrData" validate:"required"`
}

// CreateSurvey handles a complete interview submitted in one request
func (h *SurveyHandler) CreateSurvey(c echo.Context) error {
	var input usecase.SurveyInput
	if err := c.Bind(&input); err != nil {
		return errors.WithStack(err)
	}
	if err := c.Validate(&input); err != nil {
		return err
	}

	if userID, ok := middleware.GetUserID(c); ok {
		input.CreatedBy = &userID
	}

	result, err := h.surveyUC.CreateSurvey(c.Request().Context(), &input)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusCreated, result)
}

// GetSurvey returns the full view of a stored survey
func (h *SurveyHandler) GetSurvey(c echo.Context) error {
	familyID, err := parseFamilyID(c)
	if err != nil {
		return err
	}

	view, err := h.surveyUC.GetSurvey(c.Request().Context(), familyID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, view)
}

// ListSurveys returns one page of surveys
func (h *SurveyHandler) ListSurveys(c echo.Context) error {
	filter, err := bindListFilter(c)
	if err != nil {
		return err
	}

	page, err := h.surveyUC.ListSurveys(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, page)
}

// DeleteSurvey removes a family and everything recorded about it
func (h *SurveyHandler) DeleteSurvey(c echo.Context) error {
	familyID, err := parseFamilyID(c)
	if err != nil {
		return err
	}

	result, err := h.surveyUC.DeleteSurvey(c.Request().Context(), familyID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, result)
}

// FamilyCard returns the door-card QR code as a PNG image
func (h *SurveyHandler) FamilyCard(c echo.Context) error {
	familyID, err := parseFamilyID(c)
	if err != nil {
		return err
	}

	png, err := h.surveyUC.FamilyCard(c.Request().Context(), familyID)
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

// ScanFamilyCard resolves a scanned door card to its survey
func (h *SurveyHandler) ScanFamilyCard(c echo.Context) error {
	var req ScanRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	view, err := h.surveyUC.ScanFamilyCard(c.Request().Context(), req.QRData)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, view)
}

// ExportSurveys downloads the filtered surveys as a spreadsheet
func (h *SurveyHandler) ExportSurveys(c echo.Context) error {
	filter, err := bindListFilter(c)
	if err != nil {
		return err
	}

	export, err := h.surveyUC.ExportSurveys(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return response.Attachment(c, export.FileName, export.ContentType, export.Checksum, export.Content)
}

func bindListFilter(c echo.Context) (usecase.SurveyListFilter, error) {
	var filter usecase.SurveyListFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return filter, errors.WithStack(err)
	}
	if err := c.Validate(&filter); err != nil {
		return filter, err
	}

	return filter, nil
}

func parseFamilyID(c echo.Context) (int64, error) {
	familyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || familyID <= 0 {
		return 0, domainerrors.ErrValidationFailed.WithDetails(map[string]any{"id": c.Param("id")})
	}

	return familyID, nil
}
