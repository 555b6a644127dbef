// Package persistence selects the storage driver behind the domain's TransactionManager.
package persistence

import (
	"log/slog"

	"censo/config"
	"censo/internal/domain/constants"
	"censo/internal/domain/repository"
	"censo/internal/infra/persistence/memory"
	"censo/internal/infra/persistence/postgres"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params holds dependencies for the transaction manager, injected by Fx
type Params struct {
	fx.In

	Lc       fx.Lifecycle
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry `optional:"true"`
}

// NewTransactionManager builds the transaction manager for the configured storage driver.
func NewTransactionManager(params Params) (repository.TransactionManager, error) {
	switch params.Config.Storage.Driver {
	case constants.StorageDriverMemory:
		params.Logger.Warn("Using in-memory storage; data is lost on restart")

		return memory.NewStore(), nil

	case constants.StorageDriverPostgres:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lc,
			Config:    params.Config,
			Logger:    params.Logger,
			Registry:  params.Registry,
		})
		if err != nil {
			return nil, err
		}

		return postgres.NewTransactionManager(db), nil

	default:
		return nil, errors.Errorf("unknown storage driver: %s", params.Config.Storage.Driver)
	}
}

// Module provides the persistence FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewTransactionManager),
)
