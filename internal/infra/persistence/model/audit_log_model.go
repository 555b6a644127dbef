package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SurveyAuditLogModel mirrors the 'survey_audit_logs' table written by the audit worker.
type SurveyAuditLogModel struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	TransactionRef string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_survey_audit_event,priority:1"`
	EventType      string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_survey_audit_event,priority:2"`
	FamilyID       *int64         `gorm:"index"`
	DraftID        *uuid.UUID     `gorm:"type:uuid"`
	RequestID      string         `gorm:"type:varchar(64)"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	OccurredAt     time.Time      `gorm:"not null"`
	RecordedAt     time.Time      `gorm:"autoCreateTime"`
}

// TableName explicitly sets the table name for GORM.
func (SurveyAuditLogModel) TableName() string {
	return "survey_audit_logs"
}
