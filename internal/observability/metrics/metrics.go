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

// Metrics exposes application-level instruments.
type Metrics struct {
	payments        metric.Int64Counter
	refunds         metric.Int64Counter
	ledgerTransfers metric.Int64Counter
	oracleReads     metric.Int64Counter
	settingsChanges metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "subscriber"
	}
	meter := provider.Meter(name)

	payments, err := meter.Int64Counter("subscriber_payments_total")
	if err != nil {
		return nil, err
	}
	refunds, err := meter.Int64Counter("subscriber_refunds_total")
	if err != nil {
		return nil, err
	}
	ledgerTransfers, err := meter.Int64Counter("subscriber_ledger_transfers_total")
	if err != nil {
		return nil, err
	}
	oracleReads, err := meter.Int64Counter("subscriber_oracle_reads_total")
	if err != nil {
		return nil, err
	}
	settingsChanges, err := meter.Int64Counter("subscriber_settings_changes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		payments:        payments,
		refunds:         refunds,
		ledgerTransfers: ledgerTransfers,
		oracleReads:     oracleReads,
		settingsChanges: settingsChanges,
	}, nil
}

// RecordPayment counts a handled payment by outcome ("created", "renewed", "rejected").
func (m *Metrics) RecordPayment(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.payments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRefund counts overpayment refunds.
func (m *Metrics) RecordRefund(ctx context.Context) {
	if m == nil {
		return
	}
	m.refunds.Add(ctx, 1)
}

// RecordLedgerTransfer counts settlement token movements by kind.
func (m *Metrics) RecordLedgerTransfer(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.ledgerTransfers.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOracleRead counts price feed reads.
func (m *Metrics) RecordOracleRead(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feed_kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.oracleReads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSettingsChange counts owner configuration changes.
func (m *Metrics) RecordSettingsChange(ctx context.Context, setting string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("setting", strings.TrimSpace(setting)))
	m.settingsChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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
	"outcome":     {},
	"kind":        {},
	"feed_kind":   {},
	"setting":     {},
	"method":      {},
	"route":       {},
	"status_code": {},
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
