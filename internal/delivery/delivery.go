// Package delivery holds the servers that expose use cases to the outside world.
package delivery

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"censo/config"
	"censo/internal/delivery/middleware"
	"censo/internal/domain/lifecycle"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

// Delivery is a long-running server started by the application's invoke hook.
type Delivery interface {
	Serve(ctx context.Context) error
}

// NewEcho returns an echo instance with the configured timeouts and the middleware every
// censo server runs first: panic recovery, request id, request logging.
func NewEcho(cfg *config.Config, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.HTTP.Timeouts.ReadTimeout
	e.Server.ReadHeaderTimeout = cfg.HTTP.Timeouts.ReadHeaderTimeout
	e.Server.WriteTimeout = cfg.HTTP.Timeouts.WriteTimeout
	e.Server.IdleTimeout = cfg.HTTP.Timeouts.IdleTimeout

	// Request id before the logger so access lines carry it.
	e.Use(echomiddleware.Recover())
	e.Use(middleware.NewRequestIDMiddleware(logger).Process)
	e.Use(middleware.NewLoggerMiddleware(logger, cfg).Handle)

	return e
}

// EchoServer serves one echo instance on http.port until the fx lifecycle stops it.
type EchoServer struct {
	name   string
	echo   *echo.Echo
	cfg    *config.Config
	logger *slog.Logger
	h2c    bool
}

// ServerOption tweaks an EchoServer.
type ServerOption func(*EchoServer)

// WithH2C serves HTTP/2 over cleartext, for clients behind a TLS terminating proxy.
func WithH2C() ServerOption {
	return func(s *EchoServer) {
		s.h2c = true
	}
}

// NewEchoServer registers the graceful shutdown hook and returns the server.
func NewEchoServer(lc fx.Lifecycle, name string, e *echo.Echo, cfg *config.Config, logger *slog.Logger, opts ...ServerOption) *EchoServer {
	srv := &EchoServer{
		name:   name,
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(srv)
	}

	lc.Append(fx.Hook{OnStop: srv.stop})

	return srv
}

// Serve blocks until the server is shut down.
func (s *EchoServer) Serve(_ context.Context) error {
	hostPort := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.HTTP.Port))
	s.logger.Info("Starting HTTP server", slog.String("server", s.name), slog.String("host_port", hostPort), slog.Bool("h2c", s.h2c))

	var err error
	if s.h2c {
		err = s.echo.StartH2CServer(hostPort, &http2.Server{IdleTimeout: s.cfg.HTTP.Timeouts.IdleTimeout})
	} else {
		err = s.echo.Start(hostPort)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *EchoServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server", slog.String("server", s.name))

	return errors.WithStack(s.echo.Shutdown(shutdownCtx))
}
