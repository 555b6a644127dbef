package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one survey event recorded by the audit worker.
// (TransactionRef, EventType) is unique, so redelivered events are stored once.
type AuditLog struct {
	ID             int64
	EventType      string
	TransactionRef string
	FamilyID       *int64
	DraftID        *uuid.UUID
	RequestID      string
	Payload        []byte // Raw event JSON.
	OccurredAt     time.Time
	RecordedAt     time.Time
}
