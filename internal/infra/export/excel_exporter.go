// Package export renders survey listings into spreadsheet documents.
package export

import (
	"bytes"
	"time"

	"censo/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
)

const (
	sheetName       = "Encuestas"
	dateLayout      = "2006-01-02 15:04"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type column struct {
	header string
	width  float64
	value  func(row *service.SurveyExportRow) any
}

//nolint:gochecknoglobals
var surveyColumns = []column{
	{"ID", 10, func(r *service.SurveyExportRow) any { return r.FamilyID }},
	{"Código", 24, func(r *service.SurveyExportRow) any { return r.Code }},
	{"Apellido", 24, func(r *service.SurveyExportRow) any { return r.Surname }},
	{"Dirección", 36, func(r *service.SurveyExportRow) any { return r.Address }},
	{"Teléfono", 16, func(r *service.SurveyExportRow) any { return r.Phone }},
	{"Sector", 20, func(r *service.SurveyExportRow) any { return r.Sector }},
	{"Municipio", 20, func(r *service.SurveyExportRow) any { return r.Municipality }},
	{"Tamaño del hogar", 16, func(r *service.SurveyExportRow) any { return r.HouseholdSize }},
	{"Miembros vivos", 16, func(r *service.SurveyExportRow) any { return r.LivingMembers }},
	{"Difuntos", 12, func(r *service.SurveyExportRow) any { return r.DeceasedMembers }},
	{"Estado", 14, func(r *service.SurveyExportRow) any { return r.SurveyStatus }},
	{"Encuestas", 12, func(r *service.SurveyExportRow) any { return r.SurveyCount }},
	{"Última encuesta", 20, func(r *service.SurveyExportRow) any { return formatTime(r.LastSurveyAt) }},
}

type excelExporter struct{}

// NewExcelExporter creates an exporter producing .xlsx workbooks
func NewExcelExporter() service.SurveyExporter {
	return &excelExporter{}
}

func (e *excelExporter) ContentType() string { return xlsxContentType }

func (e *excelExporter) FileExtension() string { return "xlsx" }

// Export writes one header row followed by one row per household.
func (e *excelExporter) Export(rows []service.SurveyExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sheet")
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "failed to delete default sheet")
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create header style")
	}

	for i, col := range surveyColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert column number")
		}
		cell := name + "1"
		if err := f.SetCellValue(sheetName, cell, col.header); err != nil {
			return nil, errors.Wrapf(err, "failed to set header cell %s", cell)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, errors.Wrap(err, "failed to set header style")
		}
		if err := f.SetColWidth(sheetName, name, name, col.width); err != nil {
			return nil, errors.Wrap(err, "failed to set column width")
		}
	}

	for r := range rows {
		values := make([]any, len(surveyColumns))
		for i, col := range surveyColumns {
			values[i] = col.value(&rows[r])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert coordinates")
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, errors.Wrapf(err, "failed to write row %d", r+2)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, errors.Wrap(err, "failed to freeze header row")
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to write workbook")
	}

	return buf.Bytes(), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(dateLayout)
}

// Module provides the survey exporter
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewExcelExporter),
)
