package observability

import (
	"github.com/smallbiznis/subscriber/internal/observability/logger"
	"github.com/smallbiznis/subscriber/internal/observability/metrics"
	"github.com/smallbiznis/subscriber/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(announce),
)

// announce forces the tracer provider to build and records what this
// deployment exports under.
func announce(cfg Config, log *zap.Logger, _ *sdktrace.TracerProvider) {
	log.Named("observability").Info("telemetry configured",
		zap.String("handler", cfg.HandlerAddress),
		zap.String("settlement", cfg.SettlementSymbol),
		zap.Bool("otel_enabled", cfg.OtelEnabled),
		zap.String("otlp_protocol", cfg.OtelExporterProtocol),
		zap.Float64("sampling_ratio", cfg.OtelSamplingRatio),
	)
}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
		Fields:              cfg.deploymentAttributes(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:            cfg.OtelEnabled,
		ServiceName:        cfg.ServiceName,
		ServiceVersion:     cfg.Version,
		Environment:        cfg.Environment,
		ExporterEndpoint:   cfg.OtelExporterEndpoint,
		ExporterProtocol:   cfg.OtelExporterProtocol,
		SamplingRatio:      cfg.OtelSamplingRatio,
		ResourceAttributes: cfg.deploymentAttributes(),
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}
