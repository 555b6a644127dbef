package constants

// Runtime environments
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Pub/Sub providers
const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Auto-save providers
const (
	AutoSaveProviderRedis  = "redis"
	AutoSaveProviderMemory = "memory"
)

// Survey event types published after a committed write.
const (
	EventSurveyCreated   = "survey.created"
	EventSurveyCompleted = "survey.completed"
	EventSurveyDeleted   = "survey.deleted"
)
