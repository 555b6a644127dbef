package service

// SurveyMetrics records survey intake outcomes.
type SurveyMetrics interface {
	SurveyCreated(membersCreated, deceasedCreated, skipped int)
	DuplicateRejected()
	DraftTransition(status string)
	SurveyDeleted()
}
