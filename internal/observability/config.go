package observability

import (
	"strings"

	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/spf13/viper"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	// HandlerAddress and SettlementSymbol tag every log line and trace so
	// deployments serving different handlers or tokens can be told apart.
	HandlerAddress   string
	SettlementSymbol string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	// every payment path is sampled outside production
	if cfg.IsProduction() {
		v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)
	} else {
		v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)
	}

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "subscriber"
	}
	protocol := v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	if traces := strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:              strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		HandlerAddress:       strings.TrimSpace(cfg.Handler.Address),
		SettlementSymbol:     strings.ToUpper(strings.TrimSpace(cfg.Settlement.Symbol)),
		LogLevel:             lower(v.GetString("LOG_LEVEL")),
		LogFormat:            lower(v.GetString("LOG_FORMAT")),
		OtelEnabled:          v.GetBool("OTEL_ENABLED"),
		OtelExporterEndpoint: strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OtelExporterProtocol: lower(protocol),
		OtelSamplingRatio:    clampRatio(v.GetFloat64("OTEL_SAMPLING_RATIO")),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// deploymentAttributes are attached to the logger and the trace resource.
func (c Config) deploymentAttributes() map[string]string {
	attrs := make(map[string]string, 2)
	if c.HandlerAddress != "" {
		attrs["subscriber.handler"] = c.HandlerAddress
	}
	if c.SettlementSymbol != "" {
		attrs["subscriber.settlement"] = c.SettlementSymbol
	}
	return attrs
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
