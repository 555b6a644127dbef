package autosave

import (
	"log/slog"

	"censo/config"
	"censo/internal/domain/constants"
	"censo/internal/domain/service"
	infraredis "censo/internal/infra/redis"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Params holds dependencies for the auto-save store, injected by Fx
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewStore builds the auto-save store for the configured provider.
func NewStore(params Params) (service.AutoSaveStore, error) {
	cfg := params.Config.AutoSave

	switch cfg.Provider {
	case constants.AutoSaveProviderRedis:
		client, err := infraredis.New(infraredis.Params{
			Lc:     params.Lc,
			Config: params.Config,
			Logger: params.Logger,
		})
		if err != nil {
			return nil, err
		}
		params.Logger.Info("Using Redis auto-save store", slog.Duration("ttl", cfg.TTL))

		return NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), nil

	case constants.AutoSaveProviderMemory:
		params.Logger.Info("Using in-memory auto-save store", slog.Duration("ttl", cfg.TTL))

		return NewMemoryStore(cfg.TTL, nil), nil

	default:
		return nil, errors.Errorf("unknown auto-save provider: %s", cfg.Provider)
	}
}

// Module provides the auto-save FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewStore),
)
