package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SurveyDraftModel mirrors the 'survey_drafts' table. Stages and members are jsonb arrays.
type SurveyDraftModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OwnerID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Stages       datatypes.JSON `gorm:"type:jsonb;not null"`
	Members      datatypes.JSON `gorm:"type:jsonb;not null"`
	CurrentStage int            `gorm:"not null;default:0"`
	TotalStages  int            `gorm:"not null"`
	Progress     int            `gorm:"not null;default:0"`
	Version      int64          `gorm:"not null;default:1"`
	Status       string         `gorm:"type:varchar(20);not null;index"`
	FamilyID     *int64         `gorm:"index"`
	Observations string         `gorm:"type:text"`
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (SurveyDraftModel) TableName() string {
	return "survey_drafts"
}
