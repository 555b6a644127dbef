// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SurveyStatus tracks whether a household has a finished interview on file.
type SurveyStatus string

const (
	// SurveyStatusPending marks a family registered without a finished interview.
	SurveyStatusPending SurveyStatus = "pending"
	// SurveyStatusCompleted marks a family with at least one finished interview.
	SurveyStatusCompleted SurveyStatus = "completed"
)

// Family is the surveyed household. It owns its members and utility associations.
// (Surname, Phone, Address) identifies a household; storage enforces it with a unique index.
type Family struct {
	ID               int64        // Storage-assigned identifier.
	Code             string       // Human-readable code printed on the door card, e.g. FAM-LZ3K9Q-7F2A.
	Surname          string       // Household surname as written by the interviewer.
	Address          string       // Street address.
	Phone            string       // Contact phone.
	Email            *string      // Optional contact email.
	HouseholdSize    int          // Living members on file; derived by the survey writer.
	HousingTypeLabel string       // Housing type as entered, kept for display.
	SurveyStatus     SurveyStatus // Interview completion status.
	SurveyCount      int          // Number of finished interviews for this household.
	LastSurveyAt     *time.Time   // When the latest interview finished.
	SectorID         *int64       // Optional location catalog references.
	VeredaID         *int64
	MunicipalityID   *int64
	ParishID         *int64
	Observations     string     // Free-text interviewer notes.
	CreatedBy        *uuid.UUID // Interviewer that registered the household, when known.
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasIdentity reports whether the fields that identify a household are all present.
func (f *Family) HasIdentity() bool {
	return strings.TrimSpace(f.Surname) != "" &&
		strings.TrimSpace(f.Phone) != "" &&
		strings.TrimSpace(f.Address) != ""
}

// RecordSurvey marks a finished interview at the given time.
func (f *Family) RecordSurvey(at time.Time) {
	f.SurveyStatus = SurveyStatusCompleted
	f.SurveyCount++
	f.LastSurveyAt = &at
}
