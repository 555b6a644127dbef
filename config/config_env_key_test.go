package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode": "disable",
			"master": map[string]any{
				"userName": "user",
			},
		},
		"autoSave": map[string]any{
			"keyPrefix": "",
		},
		"survey": map[string]any{
			"identityMaxAttempts": 10,
		},
		"secretKey": map[string]any{
			"access": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_MASTER_USERNAME", want: "postgres.master.userName"},
		{envKey: "AUTOSAVE_KEYPREFIX", want: "autoSave.keyPrefix"},
		{envKey: "SURVEY_IDENTITYMAXATTEMPTS", want: "survey.identityMaxAttempts"},
		{envKey: "SECRETKEY_ACCESS", want: "secretKey.access"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}

func TestApplyDefaultsAndValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Driver = "memory"
	cfg.applyDefaults()

	assert.Equal(t, defaultTotalStages, cfg.Survey.TotalStages)
	assert.Equal(t, defaultIdentityMaxAttempts, cfg.Survey.IdentityMaxAttempts)
	assert.Equal(t, defaultMaxPageSize, cfg.Survey.MaxPageSize)
	assert.Equal(t, "memory", cfg.AutoSave.Provider)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, cfg.Survey.RequiredStageNumbers())
	require.NoError(t, cfg.validate())

	cfg.Survey.RequiredStages = []int{1, 7}
	assert.Error(t, cfg.validate())

	cfg.Survey.RequiredStages = []int{1, 2}
	assert.Equal(t, []int{1, 2}, cfg.Survey.RequiredStageNumbers())

	cfg.AutoSave.Provider = "redis"
	assert.Error(t, cfg.validate())

	cfg.AutoSave.Provider = "memory"
	cfg.Auth = &AuthConfig{Enabled: true}
	assert.Error(t, cfg.validate())
}

func TestLoadWithEnv_ReadsYAMLAndEnvOverrides(t *testing.T) {
	t.Setenv("SURVEY_TOTALSTAGES", "4")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadWithEnv[Config]("config")
	require.NoError(t, err)

	assert.Equal(t, "censo", cfg.Env.ServiceName)
	assert.Equal(t, 4, cfg.Survey.TotalStages)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}
