package model

import (
	"time"

	"github.com/google/uuid"
)

// FamilyModel mirrors the 'families' table.
// uq_families_identity makes (surname, phone, address) the storage-level duplicate arbiter.
type FamilyModel struct {
	ID               int64      `gorm:"primaryKey;autoIncrement"`
	Code             string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	Surname          string     `gorm:"type:varchar(150);not null;uniqueIndex:uq_families_identity,priority:1"`
	Phone            string     `gorm:"type:varchar(50);not null;uniqueIndex:uq_families_identity,priority:2"`
	Address          string     `gorm:"type:varchar(255);not null;uniqueIndex:uq_families_identity,priority:3"`
	Email            *string    `gorm:"type:varchar(255)"`
	HouseholdSize    int        `gorm:"not null;default:0"`
	HousingTypeLabel string     `gorm:"type:varchar(100)"`
	SurveyStatus     string     `gorm:"type:varchar(20);not null;default:'pending'"`
	SurveyCount      int        `gorm:"not null;default:0"`
	LastSurveyAt     *time.Time
	SectorID         *int64     `gorm:"index"`
	VeredaID         *int64
	MunicipalityID   *int64     `gorm:"index"`
	ParishID         *int64
	Observations     string     `gorm:"type:text"`
	CreatedBy        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (FamilyModel) TableName() string {
	return "families"
}

