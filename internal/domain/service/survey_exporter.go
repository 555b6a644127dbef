package service

import "time"

// SurveyExportRow is one household line of a survey spreadsheet.
type SurveyExportRow struct {
	FamilyID        int64
	Code            string
	Surname         string
	Address         string
	Phone           string
	Sector          string
	Municipality    string
	HouseholdSize   int
	LivingMembers   int64
	DeceasedMembers int64
	SurveyStatus    string
	SurveyCount     int
	LastSurveyAt    *time.Time
}

// SurveyExporter renders survey rows into a downloadable document.
type SurveyExporter interface {
	// Export returns the encoded document bytes.
	Export(rows []SurveyExportRow) ([]byte, error)

	// ContentType is the MIME type of the exported document.
	ContentType() string

	// FileExtension is the extension used for the download file name, without the dot.
	FileExtension() string
}
