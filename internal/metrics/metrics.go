// Package metrics exposes relay activity as Prometheus metrics. Counters are
// fed from the relay's lifecycle events on the bus; gauges read the registry
// directly at scrape time.
package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nfrund/topicrelay/internal/pubsub"
	"github.com/nfrund/topicrelay/internal/relay"
)

const (
	namespace       = "topicrelay"
	relaySubsystem  = "relay"
	httpSubsystem   = "http"
	defaultEndpoint = "/metrics"
)

// Stats is the live view of the registry the gauges report.
type Stats interface {
	Len() int
	Topics() map[string]int
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Collector holds the relay's metrics.
type Collector struct {
	ConnectionsOpened  prometheus.Counter
	ConnectionsClosed  *prometheus.CounterVec
	TopicChanges       prometheus.Counter
	FramesMalformed    prometheus.Counter
	MessagesRelayed    prometheus.Counter
	Deliveries         prometheus.Counter
	DeliveriesFailed   prometheus.Counter
	RecipientsPerRelay prometheus.Histogram

	connectionsActive prometheus.GaugeFunc
	topicsActive      prometheus.GaugeFunc

	logger *slog.Logger
}

// NewCollector creates the relay metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer, stats Stats, logger *slog.Logger) (*Collector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "connections_total",
			Help:      "Total connections accepted",
		}),
		ConnectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "connections_closed_total",
			Help:      "Total connections closed by reason",
		}, []string{"reason"}),
		TopicChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "topic_changes_total",
			Help:      "Total topic changes",
		}),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "frames_malformed_total",
			Help:      "Total inbound frames ignored because they could not be parsed",
		}),
		MessagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "messages_relayed_total",
			Help:      "Total messages fanned out to a topic",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "deliveries_total",
			Help:      "Total messages queued for a recipient",
		}),
		DeliveriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "deliveries_failed_total",
			Help:      "Total messages a recipient's channel rejected",
		}),
		RecipientsPerRelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "message_recipients",
			Help:      "Number of peers each relayed message was offered to",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		connectionsActive: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "connections_active",
			Help:      "Connections currently registered",
		}, func() float64 { return float64(stats.Len()) }),
		topicsActive: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: relaySubsystem,
			Name:      "topics_active",
			Help:      "Topics with at least one member",
		}, func() float64 { return float64(len(stats.Topics())) }),
		logger: logger.With("component", "metrics"),
	}

	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register relay metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ConnectionsOpened,
		c.ConnectionsClosed,
		c.TopicChanges,
		c.FramesMalformed,
		c.MessagesRelayed,
		c.Deliveries,
		c.DeliveriesFailed,
		c.RecipientsPerRelay,
		c.connectionsActive,
		c.topicsActive,
	}
}

// Start subscribes the counters to the relay events until ctx is cancelled.
func (c *Collector) Start(ctx context.Context, sub pubsub.Subscriber) error {
	subs := []func() error{
		func() error {
			return pubsub.Subscribe(ctx, sub, relay.EventConnectionOpened, func(context.Context, relay.ConnectionOpened) error {
				c.ConnectionsOpened.Inc()
				return nil
			})
		},
		func() error {
			return pubsub.Subscribe(ctx, sub, relay.EventConnectionClosed, func(_ context.Context, e relay.ConnectionClosed) error {
				c.ConnectionsClosed.WithLabelValues(e.Reason).Inc()
				return nil
			})
		},
		func() error {
			return pubsub.Subscribe(ctx, sub, relay.EventTopicChanged, func(context.Context, relay.TopicChanged) error {
				c.TopicChanges.Inc()
				return nil
			})
		},
		func() error {
			return pubsub.Subscribe(ctx, sub, relay.EventFrameMalformed, func(context.Context, relay.FrameMalformed) error {
				c.FramesMalformed.Inc()
				return nil
			})
		},
		func() error {
			return pubsub.Subscribe(ctx, sub, relay.EventDeliveryFailed, func(context.Context, relay.DeliveryFailed) error {
				c.DeliveriesFailed.Inc()
				return nil
			})
		},
		func() error {
			return pubsub.Subscribe(ctx, sub, relay.EventMessageRelayed, func(_ context.Context, e relay.MessageRelayed) error {
				c.MessagesRelayed.Inc()
				c.Deliveries.Add(float64(e.Recipients - e.Failed))
				c.RecipientsPerRelay.Observe(float64(e.Recipients))
				return nil
			})
		},
	}

	for _, subscribe := range subs {
		if err := subscribe(); err != nil {
			return fmt.Errorf("subscribe metrics collector: %w", err)
		}
	}
	c.logger.Debug("Metrics collector subscribed to relay events")
	return nil
}

// HTTPMiddleware records request counts and latencies for an echo server.
func HTTPMiddleware(reg prometheus.Registerer) (echo.MiddlewareFunc, error) {
	return echoprometheus.MiddlewareConfig{
		Namespace:  namespace,
		Subsystem:  httpSubsystem,
		Registerer: reg,
	}.ToMiddleware()
}

// NewEcho returns an echo instance serving g at /metrics.
func NewEcho(g prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET(defaultEndpoint, echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: g}))
	return e
}
