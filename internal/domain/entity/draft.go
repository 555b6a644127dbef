package entity

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DraftStatus is the state of a stage-based survey.
type DraftStatus string

const (
	DraftStatusDraft      DraftStatus = "draft"
	DraftStatusInProgress DraftStatus = "in_progress"
	DraftStatusCompleted  DraftStatus = "completed"
	DraftStatusCancelled  DraftStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s DraftStatus) IsTerminal() bool {
	return s == DraftStatusCompleted || s == DraftStatusCancelled
}

// DraftStage is the accumulated payload of one form screen.
type DraftStage struct {
	Number  int            `json:"number"`
	Data    map[string]any `json:"data"`
	SavedAt *time.Time     `json:"savedAt,omitempty"`
}

// IsNonTrivial reports whether the stage holds at least one meaningful value.
func (s DraftStage) IsNonTrivial() bool {
	for _, v := range s.Data {
		if hasContent(v) {
			return true
		}
	}

	return false
}

// DraftMember is a household member attached to a draft before completion.
// Deletion is a flag flip so the member can be restored.
type DraftMember struct {
	ID        uuid.UUID      `json:"id"`
	Data      map[string]any `json:"data"`
	Deleted   bool           `json:"deleted"`
	DeletedAt *time.Time     `json:"deletedAt,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SurveyDraft is a survey built up over several stage submissions.
// Version strictly increases on every mutation.
type SurveyDraft struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Stages       []DraftStage
	Members      []DraftMember
	CurrentStage int
	TotalStages  int
	Progress     int // Percent of non-trivial stages, 0-100.
	Version      int64
	Status       DraftStatus
	FamilyID     *int64 // Set once the draft is materialized into a family.
	Observations string
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSurveyDraft creates an empty draft in the initial state.
func NewSurveyDraft(owner uuid.UUID, totalStages int, now time.Time) *SurveyDraft {
	return &SurveyDraft{
		ID:          uuid.New(),
		OwnerID:     owner,
		Stages:      []DraftStage{},
		Members:     []DraftMember{},
		TotalStages: totalStages,
		Version:     1,
		Status:      DraftStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MergeStage shallow-merges data into stage n, creating empty slots up to n,
// then recomputes progress and status.
func (d *SurveyDraft) MergeStage(n int, data map[string]any, now time.Time) {
	for len(d.Stages) < n {
		d.Stages = append(d.Stages, DraftStage{Number: len(d.Stages) + 1, Data: map[string]any{}})
	}

	stage := &d.Stages[n-1]
	if stage.Data == nil {
		stage.Data = make(map[string]any, len(data))
	}
	maps.Copy(stage.Data, data)
	stage.SavedAt = &now

	d.CurrentStage = n
	d.RecomputeProgress()
	if d.Status == DraftStatusDraft && d.Progress > 0 {
		d.Status = DraftStatusInProgress
	}
}

// RecomputeProgress sets Progress to non-trivial stages over total stages.
func (d *SurveyDraft) RecomputeProgress() {
	if d.TotalStages <= 0 {
		d.Progress = 0

		return
	}

	filled := 0
	for _, stage := range d.Stages {
		if stage.Number <= d.TotalStages && stage.IsNonTrivial() {
			filled++
		}
	}
	d.Progress = filled * 100 / d.TotalStages
}

// MissingStages returns the required stage numbers that are absent or trivial.
func (d *SurveyDraft) MissingStages(required []int) []int {
	var missing []int
	for _, n := range required {
		if n < 1 || n > len(d.Stages) || !d.Stages[n-1].IsNonTrivial() {
			missing = append(missing, n)
		}
	}

	return missing
}

// MergedData combines all stage payloads in stage order. Nested objects are merged
// key by key so later stages refine earlier ones instead of replacing them.
func (d *SurveyDraft) MergedData() map[string]any {
	merged := make(map[string]any)
	for _, stage := range d.Stages {
		deepMerge(merged, stage.Data)
	}

	return merged
}

// ActiveMembers returns the members that are not soft-deleted.
func (d *SurveyDraft) ActiveMembers() []DraftMember {
	active := make([]DraftMember, 0, len(d.Members))
	for _, m := range d.Members {
		if !m.Deleted {
			active = append(active, m)
		}
	}

	return active
}

// FindMember returns the index of the member with the given ID.
func (d *SurveyDraft) FindMember(id uuid.UUID) (int, bool) {
	for i, m := range d.Members {
		if m.ID == id {
			return i, true
		}
	}

	return -1, false
}

// AppendObservation adds a line to the free-text observation log.
func (d *SurveyDraft) AppendObservation(line string) {
	if strings.TrimSpace(d.Observations) == "" {
		d.Observations = line

		return
	}
	d.Observations += "\n" + line
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)

			continue
		}
		if srcIsMap {
			copied := make(map[string]any, len(srcMap))
			deepMerge(copied, srcMap)
			dst[k] = copied

			continue
		}
		dst[k] = v
	}
}

// hasContent treats nil, blank strings and empty collections as trivial.
// Booleans and numbers always count as content.
func hasContent(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case map[string]any:
		for _, inner := range val {
			if hasContent(inner) {
				return true
			}
		}

		return false
	case []any:
		for _, inner := range val {
			if hasContent(inner) {
				return true
			}
		}

		return false
	default:
		return true
	}
}
