// Package app wires the relay's services together in a dependency container
// and runs them for the lifetime of the process.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/topicrelay/internal/config"
	"github.com/nfrund/topicrelay/internal/metrics"
	"github.com/nfrund/topicrelay/internal/pubsub"
	"github.com/nfrund/topicrelay/internal/relay"
	"github.com/nfrund/topicrelay/internal/server"
	"github.com/nfrund/topicrelay/internal/topicmgr"
)

// App owns the dependency container. Services are built lazily on first use
// and torn down in reverse dependency order by Shutdown.
type App struct {
	injector *do.RootScope
	cfg      *config.Config
	logger   *slog.Logger
}

// New creates an application for cfg. Nothing is started until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	i := do.New()
	do.ProvideValue(i, cfg)
	do.ProvideValue(i, logger)
	do.Provide(i, provideTracing)
	do.Provide(i, provideBus)
	do.Provide(i, provideTopics)
	do.Provide(i, provideRegistry)
	do.Provide(i, provideRelay)
	do.Provide(i, provideMetricsRegistry)
	do.Provide(i, provideCollector)
	do.Provide(i, provideServer)

	return &App{injector: i, cfg: cfg, logger: logger}
}

// Run starts the servers and blocks until ctx is cancelled or a server fails.
// Every service is shut down before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown()

	topics, err := a.Topics()
	if err != nil {
		return err
	}
	a.logger.Debug("Event topics registered", "count", len(topics.List()))

	if a.cfg.MetricsAddr != "" {
		collector, err := do.Invoke[*metrics.Collector](a.injector)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		bus, err := do.Invoke[*pubsub.WatermillBridge](a.injector)
		if err != nil {
			return fmt.Errorf("event bus: %w", err)
		}
		if err := collector.Start(ctx, bus); err != nil {
			return err
		}
	}

	srv, err := a.Server()
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// Server returns the application's server, building it and its dependencies on first use.
func (a *App) Server() (*server.Server, error) {
	srv, err := do.Invoke[*server.Server](a.injector)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	return srv, nil
}

// Registry returns the connection registry.
func (a *App) Registry() (*relay.Registry, error) {
	return do.Invoke[*relay.Registry](a.injector)
}

// Topics returns the event topic catalogue.
func (a *App) Topics() (*topicmgr.Manager, error) {
	m, err := do.Invoke[*topicmgr.Manager](a.injector)
	if err != nil {
		return nil, fmt.Errorf("topic catalogue: %w", err)
	}
	return m, nil
}

// Shutdown tears down every service that was built.
func (a *App) Shutdown() {
	a.injector.Shutdown()
	a.logger.Info("Application stopped")
}

// tracing keeps the tracer and its flush function together so the container
// can flush spans on shutdown.
type tracing struct {
	tracer  trace.Tracer
	cleanup func()
}

func (t *tracing) Shutdown() {
	t.cleanup()
}

func provideTracing(i do.Injector) (*tracing, error) {
	tracer, cleanup, err := pubsub.SetupOTel(context.Background(), pubsub.LoadTracingConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	return &tracing{tracer: tracer, cleanup: cleanup}, nil
}

func provideBus(i do.Injector) (*pubsub.WatermillBridge, error) {
	t := do.MustInvoke[*tracing](i)
	cfg := do.MustInvoke[*config.Config](i)

	// GoChannel logs every event nobody subscribes to at info level.
	var wmLogger watermill.LoggerAdapter = watermill.NopLogger{}
	if cfg.LogLevel == "debug" {
		wmLogger = watermill.NewStdLogger(true, false)
	}
	return pubsub.NewWatermillBridge(
		pubsub.WithTracer(t.tracer),
		pubsub.WithLogger(wmLogger),
	), nil
}

func provideTopics(i do.Injector) (*topicmgr.Manager, error) {
	m := topicmgr.NewManager()
	if err := relay.RegisterTopics(m); err != nil {
		return nil, err
	}
	return m, nil
}

func provideRegistry(i do.Injector) (*relay.Registry, error) {
	return relay.NewRegistry(), nil
}

func provideRelay(i do.Injector) (*relay.Relay, error) {
	return relay.New(
		do.MustInvoke[*relay.Registry](i),
		do.MustInvoke[*pubsub.WatermillBridge](i),
		do.MustInvoke[*slog.Logger](i),
	), nil
}

func provideMetricsRegistry(i do.Injector) (*prometheus.Registry, error) {
	return metrics.NewRegistry(), nil
}

func provideCollector(i do.Injector) (*metrics.Collector, error) {
	return metrics.NewCollector(
		do.MustInvoke[*prometheus.Registry](i),
		do.MustInvoke[*relay.Registry](i),
		do.MustInvoke[*slog.Logger](i),
	)
}

func provideServer(i do.Injector) (*server.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	opts := server.Options{Logger: do.MustInvoke[*slog.Logger](i)}
	if cfg.MetricsAddr != "" {
		// The collector must be registered before the registry is scraped.
		do.MustInvoke[*metrics.Collector](i)
		opts.Registry = do.MustInvoke[*prometheus.Registry](i)
	}
	return server.New(cfg, do.MustInvoke[*relay.Relay](i), opts)
}
