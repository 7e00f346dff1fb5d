// Package metrics wires the OTEL meter provider with Prometheus and OTLP
// readers and serves the Prometheus scrape endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

// Exporter selects where metrics are shipped.
type Exporter string

const (
	ExporterPrometheus Exporter = "prometheus"
	ExporterOTLP       Exporter = "otlp"
)

// Config configures the meter provider.
type Config struct {
	ServiceName string
	Exporters   []ExporterCfg
}

// ExporterCfg configures one metrics exporter.
type ExporterCfg struct {
	Exporter Exporter
	Endpoint string // OTLP only
	Headers  map[string]string
	Insecure bool
}

// Option mutates Config.
type Option func(Config) Config

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(cfg Config) Config {
		cfg.ServiceName = name
		return cfg
	}
}

// WithExporter adds an exporter.
func WithExporter(exp ExporterCfg) Option {
	return func(cfg Config) Config {
		cfg.Exporters = append(cfg.Exporters, exp)
		return cfg
	}
}

// Provider is the subset of the SDK meter provider the application uses.
type Provider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

// NewProvider builds a meter provider, registers it globally and returns it.
// With no exporters configured it defaults to Prometheus only.
func NewProvider(ctx context.Context, options ...Option) (Provider, error) {
	var cfg Config
	for _, opt := range options {
		cfg = opt(cfg)
	}
	if len(cfg.Exporters) == 0 {
		cfg.Exporters = []ExporterCfg{{Exporter: ExporterPrometheus}}
	}

	var readers []sdkmetric.Reader
	for _, exp := range cfg.Exporters {
		switch exp.Exporter {
		case ExporterPrometheus:
			promExporter, err := prometheus.New()
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}
			readers = append(readers, promExporter)
		case ExporterOTLP:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(exp.Endpoint),
				otlpmetricgrpc.WithHeaders(exp.Headers),
			}
			if exp.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}
			exporter, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}
			readers = append(readers, sdkmetric.NewPeriodicReader(exporter))
		default:
			return nil, fmt.Errorf("unknown metrics exporter %q", exp.Exporter)
		}
	}

	providerOpts := make([]sdkmetric.Option, 0, len(readers)+1)
	for _, reader := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}
	providerOpts = append(providerOpts, sdkmetric.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	meterProvider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// ServePrometheusMetrics serves /metrics on the given port. It blocks, so
// callers run it in a goroutine.
func ServePrometheusMetrics(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
