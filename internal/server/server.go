package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nfrund/topicrelay/internal/config"
	"github.com/nfrund/topicrelay/internal/health"
	"github.com/nfrund/topicrelay/internal/metrics"
	appmiddleware "github.com/nfrund/topicrelay/internal/middleware"
	"github.com/nfrund/topicrelay/internal/relay"
)

// Server owns the relay, liveness and (optional) metrics listeners.
type Server struct {
	Relay   *echo.Echo
	Health  *echo.Echo
	Metrics *echo.Echo

	cfg     *config.Config
	handler *relay.Handler
	logger  *slog.Logger

	// cancelRelay ends every open relay connection.
	cancelRelay context.CancelFunc
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Registry receives HTTP metrics and is served on the metrics address.
	// Nil disables metrics.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// New creates a Server for r. Nothing listens until Listen or Start is called.
func New(cfg *config.Config, r *relay.Relay, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	base, cancel := context.WithCancel(context.Background())
	handler := relay.NewHandler(base, r, relay.HandlerConfig{
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
		ReadLimit:      cfg.ReadLimit,
		OriginPatterns: cfg.AllowedOrigins,
	}, logger)

	s := &Server{
		Relay:       newEcho(logger),
		Health:      health.NewEcho(),
		cfg:         cfg,
		handler:     handler,
		logger:      logger,
		cancelRelay: cancel,
	}
	setupErrorHandling(s.Relay)

	if opts.Registry != nil && cfg.MetricsAddr != "" {
		mw, err := metrics.HTTPMiddleware(opts.Registry)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("relay http metrics: %w", err)
		}
		s.Relay.Use(mw)
		s.Metrics = metrics.NewEcho(opts.Registry)
	}

	s.RegisterRoutes()
	return s, nil
}

func newEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger(logger))
	return e
}

// Listen binds every configured address. Start binds whatever Listen has not.
func (s *Server) Listen() error {
	for _, l := range s.listeners() {
		if l.echo.Listener != nil {
			continue
		}
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listen %s on %s: %w", l.name, l.addr, err)
		}
		l.echo.Listener = ln
	}
	return nil
}

// RelayAddr returns the bound relay address, or nil before Listen.
func (s *Server) RelayAddr() net.Addr { return listenerAddr(s.Relay) }

// HealthAddr returns the bound liveness address, or nil before Listen.
func (s *Server) HealthAddr() net.Addr { return listenerAddr(s.Health) }

// MetricsAddr returns the bound metrics address, or nil if metrics are disabled.
func (s *Server) MetricsAddr() net.Addr {
	if s.Metrics == nil {
		return nil
	}
	return listenerAddr(s.Metrics)
}

func listenerAddr(e *echo.Echo) net.Addr {
	if e.Listener == nil {
		return nil
	}
	return e.Listener.Addr()
}

type listener struct {
	name string
	addr string
	echo *echo.Echo
}

func (s *Server) listeners() []listener {
	ls := []listener{
		{name: "relay", addr: s.cfg.RelayAddr, echo: s.Relay},
		{name: "health", addr: s.cfg.HealthAddr, echo: s.Health},
	}
	if s.Metrics != nil {
		ls = append(ls, listener{name: "metrics", addr: s.cfg.MetricsAddr, echo: s.Metrics})
	}
	return ls
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners() {
		if l.echo.Listener != nil {
			l.echo.Listener.Close()
			l.echo.Listener = nil
		}
	}
}
