package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"censo/internal/domain/constants"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath                = "."
	defaultMaxRequestBodySize  = "1MB"
	defaultTotalStages         = 6
	defaultIdentityMaxAttempts = 10
	defaultPageSize            = 20
	defaultMaxPageSize         = 100
	defaultExportMaxRows       = 5000
	defaultAutoSaveTTL         = 24 * time.Hour
	defaultAutoSaveKeyPrefix   = "censo:autosave:"
	defaultMetricsPath         = "/metrics"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Storage StorageConfig `json:"storage" yaml:"storage"`

	SecretKey struct {
		Access string `json:"access" yaml:"access"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	// Redis backs the auto-save store
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	AutoSave AutoSaveConfig `json:"autoSave" yaml:"autoSave"`

	Survey SurveyConfig `json:"survey" yaml:"survey"`

	// QRCode configuration for family door cards
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	// PubSub configuration for survey event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// StorageConfig selects the persistence driver
type StorageConfig struct {
	// Driver is "postgres" or "memory"
	Driver             string        `json:"driver" yaml:"driver"`
	AutoMigrate        bool          `json:"autoMigrate" yaml:"autoMigrate"`
	SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	// Enabled requires a bearer access token on /api/v1 routes
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Issuer, when set, must match the token's iss claim
	Issuer string `json:"issuer" yaml:"issuer"`
	// RequiredRole, when set, must be among the token's roles
	RequiredRole string `json:"requiredRole" yaml:"requiredRole"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// RedisConfig defines the Redis connection used by the auto-save store
type RedisConfig struct {
	URL             string        `json:"url" yaml:"url"`
	PoolSize        int           `json:"poolSize" yaml:"poolSize"`
	MinIdleConns    int           `json:"minIdleConns" yaml:"minIdleConns"`
	DialTimeout     time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`
}

// AutoSaveConfig defines where and how long auto-save payloads are kept
type AutoSaveConfig struct {
	// Provider is "redis" or "memory"
	Provider  string        `json:"provider" yaml:"provider"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
	KeyPrefix string        `json:"keyPrefix" yaml:"keyPrefix"`
}

// SurveyConfig defines the survey intake rules
type SurveyConfig struct {
	TotalStages int `json:"totalStages" yaml:"totalStages"`
	// RequiredStages lists the stages that must be non-empty before completion; empty means all
	RequiredStages      []int `json:"requiredStages" yaml:"requiredStages"`
	IdentityMaxAttempts int   `json:"identityMaxAttempts" yaml:"identityMaxAttempts"`
	DefaultPageSize     int   `json:"defaultPageSize" yaml:"defaultPageSize"`
	MaxPageSize         int   `json:"maxPageSize" yaml:"maxPageSize"`
	// ExportMaxRows caps a spreadsheet export
	ExportMaxRows int `json:"exportMaxRows" yaml:"exportMaxRows"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`

	// PushAudience is the expected audience of push OIDC tokens (audit worker, google provider)
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = constants.StorageDriverPostgres
	}
	if cfg.AutoSave.Provider == "" {
		cfg.AutoSave.Provider = constants.AutoSaveProviderMemory
	}
	if cfg.AutoSave.TTL <= 0 {
		cfg.AutoSave.TTL = defaultAutoSaveTTL
	}
	if cfg.AutoSave.KeyPrefix == "" {
		cfg.AutoSave.KeyPrefix = defaultAutoSaveKeyPrefix
	}
	if cfg.Survey.TotalStages <= 0 {
		cfg.Survey.TotalStages = defaultTotalStages
	}
	if cfg.Survey.IdentityMaxAttempts <= 0 {
		cfg.Survey.IdentityMaxAttempts = defaultIdentityMaxAttempts
	}
	if cfg.Survey.DefaultPageSize <= 0 {
		cfg.Survey.DefaultPageSize = defaultPageSize
	}
	if cfg.Survey.MaxPageSize <= 0 {
		cfg.Survey.MaxPageSize = defaultMaxPageSize
	}
	if cfg.Survey.ExportMaxRows <= 0 {
		cfg.Survey.ExportMaxRows = defaultExportMaxRows
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func (cfg *Config) validate() error {
	for _, n := range cfg.Survey.RequiredStages {
		if n < 1 || n > cfg.Survey.TotalStages {
			return errors.Errorf("survey.requiredStages: stage %d outside 1..%d", n, cfg.Survey.TotalStages)
		}
	}
	if cfg.Storage.Driver == constants.StorageDriverPostgres && cfg.Postgres == nil {
		return errors.New("postgres configuration is required for the postgres storage driver")
	}
	if cfg.AutoSave.Provider == constants.AutoSaveProviderRedis && (cfg.Redis == nil || cfg.Redis.URL == "") {
		return errors.New("redis.url is required for the redis auto-save provider")
	}
	if cfg.Auth != nil && cfg.Auth.Enabled && cfg.SecretKey.Access == "" {
		return errors.New("secretKey.access is required when auth is enabled")
	}

	return nil
}

// RequiredStageNumbers returns the configured required stages, or every stage when none are listed.
func (c SurveyConfig) RequiredStageNumbers() []int {
	if len(c.RequiredStages) > 0 {
		return c.RequiredStages
	}

	stages := make([]int, c.TotalStages)
	for i := range stages {
		stages[i] = i + 1
	}

	return stages
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
