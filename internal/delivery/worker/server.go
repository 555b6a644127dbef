// Package worker is the HTTP delivery of the audit worker: it receives survey events
// pushed by Pub/Sub and records them in the audit log.
package worker

import (
	"log/slog"
	"net/http"

	"censo/config"
	"censo/internal/delivery"
	"censo/internal/delivery/worker/handler"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

// pushBodyLimit bounds one push envelope; survey events are a few hundred bytes.
const pushBodyLimit = "256KB"

// ServerParams holds dependencies for the worker server
type ServerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	PushHandler *handler.PushHandler
}

// NewServer creates the audit worker HTTP server
func NewServer(params ServerParams) (delivery.Delivery, error) {
	e := newEcho(params.Cfg, params.Logger, params.PushHandler)

	return delivery.NewEchoServer(params.Lc, "auditworker", e, params.Cfg, params.Logger), nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, push *handler.PushHandler) *echo.Echo {
	e := delivery.NewEcho(cfg, logger)
	e.Use(echomiddleware.BodyLimit(pushBodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "auditworker"})
	})
	e.POST("/push", push.HandlePush)

	return e
}
