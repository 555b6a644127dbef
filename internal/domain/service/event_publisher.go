// Package service defines interfaces for core, stateless domain logic
// and for the side channels the use cases talk to (events, QR codes, caches).
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SurveyEvent is published after a survey write commits and is consumed by the audit worker.
type SurveyEvent struct {
	RequestID       string     `json:"request_id,omitempty"` // For distributed tracing
	EventType       string     `json:"event_type"`
	TransactionRef  string     `json:"transaction_ref"`
	FamilyID        int64      `json:"family_id"`
	FamilyCode      string     `json:"family_code,omitempty"`
	DraftID         *uuid.UUID `json:"draft_id,omitempty"`
	MembersCreated  int        `json:"members_created"`
	DeceasedCreated int        `json:"deceased_created"`
	SkippedMembers  int        `json:"skipped_members"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishSurveyEvent publishes a survey event for async processing
	PublishSurveyEvent(ctx context.Context, event *SurveyEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
