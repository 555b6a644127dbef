package entity

import (
	"strings"
	"time"
)

// PersonKind discriminates living household members from deceased records.
type PersonKind string

const (
	PersonKindLiving   PersonKind = "living"
	PersonKindDeceased PersonKind = "deceased"
)

// Identification prefixes reserved for generated numbers.
const (
	TemporaryIDPrefix = "TEMP"
	DeceasedIDPrefix  = "DECEASED"
)

// Person is a member of a family, living or deceased.
// Deceased is set only when Kind is PersonKindDeceased and the row carries first-class deceased columns.
type Person struct {
	ID                   int64
	FamilyID             int64 // Owning family; always set.
	Kind                 PersonKind
	FirstName            string
	MiddleName           string
	FirstSurname         string
	SecondSurname        string
	BirthDate            *time.Time
	Phone                string
	Email                string
	IdentificationTypeID *int64
	IdentificationNumber string // National ID or a generated TEMP-/DECEASED- number.
	SexID                *int64
	CivilStatusID        *int64
	EducationLevelID     *int64
	LeadershipRole       string
	ShirtSize            string
	PantsSize            string
	ShoeSize             string
	HealthNeeds          string // Free text; legacy deceased rows keep a packed JSON payload here.
	Deceased             *DeceasedDetails
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DeceasedDetails carries the deceased-only attributes.
type DeceasedDetails struct {
	Anniversary  *time.Time // Date of death, never in the future.
	WasFather    bool
	WasMother    bool
	Cause        string
	RoleInferred bool // Set when WasFather/WasMother were guessed from sex at read time.
}

// IsDeceased reports whether the person is a deceased record, including legacy rows
// that are only flagged by the reserved identification prefix.
func (p *Person) IsDeceased() bool {
	return p.Kind == PersonKindDeceased || strings.HasPrefix(p.IdentificationNumber, DeceasedIDPrefix+"-")
}

// FullName joins the non-empty name parts.
func (p *Person) FullName() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{p.FirstName, p.MiddleName, p.FirstSurname, p.SecondSurname} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	return strings.Join(parts, " ")
}
