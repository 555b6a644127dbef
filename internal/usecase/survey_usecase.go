// Package usecase defines the application's use cases and the data they exchange with the delivery layer.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"censo/internal/domain/catalog"
	"censo/internal/domain/entity"

	"github.com/google/uuid"
)

// FamilyInput is the household section of an intake payload.
type FamilyInput struct {
	Surname        string  `json:"surname" validate:"required,max=150"`
	Address        string  `json:"address" validate:"required,max=255"`
	Phone          string  `json:"phone" validate:"required,max=50"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	HousingType    string  `json:"housingType" validate:"max=100"`
	SectorID       *int64  `json:"sectorId,omitempty"`
	VeredaID       *int64  `json:"veredaId,omitempty"`
	MunicipalityID *int64  `json:"municipalityId,omitempty"`
	ParishID       *int64  `json:"parishId,omitempty"`
}

// MemberInput is one living household member. Fields are deliberately loose:
// a bad member is skipped at write time instead of rejecting the whole interview.
type MemberInput struct {
	FirstName            string          `json:"firstName"`
	MiddleName           string          `json:"middleName"`
	FirstSurname         string          `json:"firstSurname"`
	SecondSurname        string          `json:"secondSurname"`
	BirthDate            json.RawMessage `json:"birthDate,omitempty"` // "YYYY-MM-DD", RFC3339 or null
	Phone                string          `json:"phone"`
	Email                string          `json:"email"`
	IdentificationType   string          `json:"identificationType"`
	IdentificationNumber string          `json:"identificationNumber"`
	Sex                  string          `json:"sex"`
	CivilStatus          string          `json:"civilStatus"`
	EducationLevel       string          `json:"educationLevel"`
	LeadershipRole       string          `json:"leadershipRole"`
	ShirtSize            string          `json:"shirtSize"`
	PantsSize            string          `json:"pantsSize"`
	ShoeSize             string          `json:"shoeSize"`
	HealthNeeds          string          `json:"healthNeeds"`
}

// DeceasedInput is one deceased family member.
type DeceasedInput struct {
	FirstName            string          `json:"firstName"`
	MiddleName           string          `json:"middleName"`
	FirstSurname         string          `json:"firstSurname"`
	SecondSurname        string          `json:"secondSurname"`
	IdentificationNumber string          `json:"identificationNumber"`
	Sex                  string          `json:"sex"`
	Anniversary          json.RawMessage `json:"anniversary,omitempty"` // Date of death.
	WasFather            bool            `json:"wasFather"`
	WasMother            bool            `json:"wasMother"`
	Cause                string          `json:"cause"`
}

// SurveyInput is a complete one-shot interview.
type SurveyInput struct {
	Family       FamilyInput           `json:"family"`
	Disposal     catalog.DisposalFlags `json:"disposal"`
	Water        catalog.WaterFlags    `json:"water"`
	Members      []MemberInput         `json:"members" validate:"max=60"`
	Deceased     []DeceasedInput       `json:"deceased" validate:"max=60"`
	Observations string                `json:"observations" validate:"max=4000"`

	// CreatedBy is the authenticated interviewer, set by the delivery layer.
	CreatedBy *uuid.UUID `json:"-"`
}

// SkippedMember explains why one member of an otherwise successful intake was not stored.
type SkippedMember struct {
	Index  int    `json:"memberIndex"` // Zero-based position within its list.
	Kind   string `json:"kind"`        // "living" or "deceased".
	Reason string `json:"reason"`
}

// SurveyResult is returned by a successful intake. Skipped members lower the created counts.
type SurveyResult struct {
	FamilyID        int64           `json:"familyId"`
	FamilyCode      string          `json:"familyCode"`
	MembersCreated  int             `json:"membersCreated"`
	DeceasedCreated int             `json:"deceasedCreated"`
	SkippedMembers  []SkippedMember `json:"skippedMembers"`
	TransactionRef  string          `json:"transactionRef"`
}

// CatalogRef is a resolved catalog item.
type CatalogRef struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// LocationView is the sector → vereda → municipality → parish chain. Any hop may be nil.
type LocationView struct {
	Sector       *entity.LocationRef `json:"sector"`
	Vereda       *entity.LocationRef `json:"vereda"`
	Municipality *entity.LocationRef `json:"municipality"`
	Parish       *entity.LocationRef `json:"parish"`
}

// MemberView is a living member with catalog labels resolved.
type MemberView struct {
	ID                   int64       `json:"id"`
	FullName             string      `json:"fullName"`
	FirstName            string      `json:"firstName"`
	MiddleName           string      `json:"middleName,omitempty"`
	FirstSurname         string      `json:"firstSurname,omitempty"`
	SecondSurname        string      `json:"secondSurname,omitempty"`
	BirthDate            *time.Time  `json:"birthDate"`
	Phone                string      `json:"phone,omitempty"`
	Email                string      `json:"email,omitempty"`
	IdentificationType   *CatalogRef `json:"identificationType"`
	IdentificationNumber string      `json:"identificationNumber"`
	Sex                  *CatalogRef `json:"sex"`
	CivilStatus          *CatalogRef `json:"civilStatus"`
	EducationLevel       *CatalogRef `json:"educationLevel"`
	LeadershipRole       string      `json:"leadershipRole,omitempty"`
	ShirtSize            string      `json:"shirtSize,omitempty"`
	PantsSize            string      `json:"pantsSize,omitempty"`
	ShoeSize             string      `json:"shoeSize,omitempty"`
	HealthNeeds          string      `json:"healthNeeds,omitempty"`
}

// Deceased detail sources, most to least reliable.
const (
	DeceasedSourceColumns  = "columns"
	DeceasedSourceLegacy   = "legacy"
	DeceasedSourceInferred = "inferred"
)

// DeceasedView is a deceased member. RoleInferred marks WasFather/WasMother guessed from sex.
type DeceasedView struct {
	ID                   int64       `json:"id"`
	FullName             string      `json:"fullName"`
	IdentificationNumber string      `json:"identificationNumber"`
	Sex                  *CatalogRef `json:"sex"`
	Anniversary          *time.Time  `json:"anniversary"`
	WasFather            bool        `json:"wasFather"`
	WasMother            bool        `json:"wasMother"`
	Cause                string      `json:"cause,omitempty"`
	RoleInferred         bool        `json:"roleInferred"`
	Source               string      `json:"source"`
}

// UtilitiesView lists the family's catalog associations.
type UtilitiesView struct {
	Disposal []CatalogRef `json:"disposal"`
	Water    []CatalogRef `json:"water"`
	Housing  []CatalogRef `json:"housing"`
}

// SurveyView is the denormalized read model of one stored survey.
type SurveyView struct {
	FamilyID      int64          `json:"familyId"`
	Code          string         `json:"code"`
	Surname       string         `json:"surname"`
	Address       string         `json:"address"`
	Phone         string         `json:"phone"`
	Email         *string        `json:"email"`
	HouseholdSize int            `json:"householdSize"`
	HousingType   string         `json:"housingType"`
	SurveyStatus  string         `json:"surveyStatus"`
	SurveyCount   int            `json:"surveyCount"`
	LastSurveyAt  *time.Time     `json:"lastSurveyAt"`
	Observations  string         `json:"observations,omitempty"`
	Location      LocationView   `json:"location"`
	Members       []MemberView   `json:"members"`
	Deceased      []DeceasedView `json:"deceased"`
	Utilities     UtilitiesView  `json:"utilities"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// SurveyListFilter selects one page of surveys.
type SurveyListFilter struct {
	SectorID       *int64 `query:"sectorId"`
	MunicipalityID *int64 `query:"municipalityId"`
	Surname        string `query:"surname"`
	Page           int    `query:"page" validate:"omitempty,min=1"`
	Limit          int    `query:"limit" validate:"omitempty,min=1"`
}

// SurveySummary is one row of a survey listing.
type SurveySummary struct {
	FamilyID        int64      `json:"familyId"`
	Code            string     `json:"code"`
	Surname         string     `json:"surname"`
	Address         string     `json:"address"`
	Phone           string     `json:"phone"`
	HouseholdSize   int        `json:"householdSize"`
	LivingMembers   int64      `json:"livingMembers"`
	DeceasedMembers int64      `json:"deceasedMembers"`
	SurveyStatus    string     `json:"surveyStatus"`
	SurveyCount     int        `json:"surveyCount"`
	LastSurveyAt    *time.Time `json:"lastSurveyAt"`
	SectorID        *int64     `json:"sectorId"`
	MunicipalityID  *int64     `json:"municipalityId"`
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// SurveyPage is one page of survey summaries.
type SurveyPage struct {
	Items      []SurveySummary `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// DeletionResult counts the rows removed by a survey deletion.
type DeletionResult struct {
	FamilyID             int64  `json:"familyId"`
	PersonsRemoved       int64  `json:"personsRemoved"`
	DisposalLinksRemoved int64  `json:"disposalLinksRemoved"`
	WaterLinksRemoved    int64  `json:"waterLinksRemoved"`
	HousingLinksRemoved  int64  `json:"housingLinksRemoved"`
	DraftsDetached       int64  `json:"draftsDetached"`
	TransactionRef       string `json:"transactionRef"`
}

// SurveyExport is a rendered spreadsheet of survey summaries.
type SurveyExport struct {
	FileName    string
	ContentType string
	Content     []byte
	Checksum    string // Hex SHA256 of Content.
}

// SurveyUsecase defines the survey intake, read and deletion use cases.
type SurveyUsecase interface {
	// CreateSurvey stores a one-shot interview as a new family with its members and associations.
	CreateSurvey(ctx context.Context, input *SurveyInput) (*SurveyResult, error)

	// GetSurvey reconstructs the denormalized view of a stored survey.
	GetSurvey(ctx context.Context, familyID int64) (*SurveyView, error)

	// ListSurveys returns one page of survey summaries.
	ListSurveys(ctx context.Context, filter SurveyListFilter) (*SurveyPage, error)

	// DeleteSurvey removes the family and every dependent row.
	DeleteSurvey(ctx context.Context, familyID int64) (*DeletionResult, error)

	// FamilyCard renders the door-card QR code of a family.
	FamilyCard(ctx context.Context, familyID int64) ([]byte, error)

	// ScanFamilyCard resolves scanned door-card text to the family's survey.
	ScanFamilyCard(ctx context.Context, qrData string) (*SurveyView, error)

	// ExportSurveys renders every survey matching the filter as a spreadsheet.
	ExportSurveys(ctx context.Context, filter SurveyListFilter) (*SurveyExport, error)
}
