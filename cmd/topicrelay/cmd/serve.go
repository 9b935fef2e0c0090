package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/topicrelay/internal/app"
	"github.com/nfrund/topicrelay/internal/config"
	"github.com/nfrund/topicrelay/internal/logging"
)

var (
	serveRelayAddr   string
	serveHealthAddr  string
	serveMetricsAddr string
	serveLogLevel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay",
	Long: `Run the WebSocket relay, the liveness endpoint and, if configured, the
Prometheus metrics endpoint until SIGINT or SIGTERM.

Configuration is read from the environment (and a .env file if present):
  RELAY_ADDR             relay listen address (default :80)
  HEALTH_ADDR            liveness listen address (default :8000)
  METRICS_ADDR           metrics listen address (default disabled)
  RELAY_SEND_BUFFER      queued outbound messages per connection (default 256)
  RELAY_WRITE_TIMEOUT    timeout for one outbound write (default 10s)
  RELAY_READ_LIMIT       largest accepted inbound frame in bytes (default 32768)
  RELAY_ALLOWED_ORIGINS  comma-separated origin patterns (default any origin)
  RELAY_UPGRADE_RATE     WebSocket upgrades per second per client IP (default 0, unlimited)
  SHUTDOWN_TIMEOUT       graceful shutdown budget (default 10s)
  LOG_FORMAT             text or json (default text)
  LOG_LEVEL              debug, info, warn or error (default info)

Event bus tracing:
  PUBSUB_TRACING_ENABLED       export event bus spans (default false)
  PUBSUB_TRACING_SERVICE_NAME  service name on spans (default topicrelay)
  PUBSUB_TRACING_ZIPKIN_URL    Zipkin collector (default http://localhost:9411/api/v2/spans)

Flags override the environment.

Examples:
  topicrelay serve
  topicrelay serve --relay-addr :8080 --health-addr :8081 --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel)
	logger.Info("Starting topicrelay",
		"version", version,
		"relay_addr", cfg.RelayAddr,
		"health_addr", cfg.HealthAddr,
		"metrics_addr", cfg.MetricsAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.New(cfg, logger).Run(ctx)
}

// loadServeConfig reads the environment and applies any flags that were set.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("relay-addr") {
		cfg.RelayAddr = serveRelayAddr
	}
	if flags.Changed("health-addr") {
		cfg.HealthAddr = serveHealthAddr
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = serveMetricsAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = serveLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveRelayAddr, "relay-addr", config.DefaultRelayAddr, "Relay listen address")
	serveCmd.Flags().StringVar(&serveHealthAddr, "health-addr", config.DefaultHealthAddr, "Liveness listen address")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics listen address (empty disables metrics)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
