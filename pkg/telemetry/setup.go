package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// `Config` controls OTLP/HTTP metric export for the completion layer.
type Config struct {
	Enabled            bool
	OTLPEndpoint       string        // e.g. "otel-collector:4318"
	ExportInterval     time.Duration // default: 60s
	ExportTimeout      time.Duration // default: 30s
	ServiceName        string
	Insecure           bool
	AttributeProviders []AttributesProvider
}

// `SetupMeterProvider` builds and installs an OTLP-exporting MeterProvider as
// the process global, returning it (for later Shutdown) alongside the
// attributes collected from cfg.AttributeProviders.
func SetupMeterProvider(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, []attribute.KeyValue, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	exportInterval := cfg.ExportInterval
	if exportInterval <= 0 {
		exportInterval = 60 * time.Second
	}
	exportTimeout := cfg.ExportTimeout
	if exportTimeout <= 0 {
		exportTimeout = 30 * time.Second
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(exportInterval),
		sdkmetric.WithTimeout(exportTimeout),
	)

	resourceAttrs := CollectAttributes(cfg.AttributeProviders)
	resourceAttrs = append(resourceAttrs, semconv.ServiceName(cfg.ServiceName))

	res := resource.NewWithAttributes(semconv.SchemaURL, resourceAttrs...)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider, resourceAttrs, nil
}
