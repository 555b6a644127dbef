// Package api is the HTTP delivery of the survey service.
package api

import (
	"log/slog"

	"censo/config"
	"censo/internal/delivery"
	apimiddleware "censo/internal/delivery/api/middleware"
	"censo/internal/delivery/api/router"
	"censo/internal/delivery/api/validator"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

// ServerParams holds dependencies for HTTP server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	RouterParams router.RouterParams
}

// NewServer builds the survey API served over h2c.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	e := newEcho(params.Cfg, params.Logger, params.RouterParams)

	return delivery.NewEchoServer(params.Lc, "api", e, params.Cfg, params.Logger, delivery.WithH2C()), nil
}

// newEcho builds the configured echo instance with every route registered.
func newEcho(cfg *config.Config, logger *slog.Logger, routerParams router.RouterParams) *echo.Echo {
	e := delivery.NewEcho(cfg, logger)

	// Survey payloads are large but bounded; drafts are saved screen by screen.
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit(cfg.HTTP.MaxRequestBodySize))

	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(logger, cfg).HandleHTTPError
	e.Validator = validator.New()

	router.NewRouter(routerParams).RegisterRoutes(e)

	return e
}
