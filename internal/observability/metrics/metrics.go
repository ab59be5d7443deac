package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes business-level OTLP instruments.
type Metrics struct {
	transitions   metric.Int64Counter
	notifications metric.Int64Counter
	smsDispatched metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New configures the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tirta"
	}
	meter := provider.Meter(name)

	transitions, err := meter.Int64Counter("tirta_consumer_transitions_total",
		metric.WithDescription("Consumer service transitions by action."))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("tirta_notifications_emitted_total",
		metric.WithDescription("In-app notifications written."))
	if err != nil {
		return nil, err
	}
	smsDispatched, err := meter.Int64Counter("tirta_sms_dispatched_total",
		metric.WithDescription("Personalized SMS accepted for delivery."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitions:   transitions,
		notifications: notifications,
		smsDispatched: smsDispatched,
	}, nil
}

// RecordTransition counts one committed transition.
func (m *Metrics) RecordTransition(ctx context.Context, action string, redundant bool) {
	if m == nil {
		return
	}
	outcome := "applied"
	if redundant {
		outcome = "redundant"
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("outcome", outcome),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordNotifications(ctx context.Context, source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.notifications.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSmsDispatched(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.smsDispatched.Add(ctx, int64(count))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"action":   {},
	"outcome":  {},
	"source":   {},
	"provider": {},
	"reason":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
