// Package telemetry wires the OpenTelemetry SDK that receives container
// metrics and the Prometheus registry that exposes the collector's own health.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	constants "contmon/config"
)

const exportTimeout = 30 * time.Second

// ProviderConfig selects and configures the metrics exporter.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	Exporter       string // otlp-http, otlp-grpc or none
	Endpoint       string
	Insecure       bool
	Headers        map[string]string
	ExportInterval time.Duration
}

// Provider owns the SDK meter provider.
type Provider struct {
	mp *sdkmetric.MeterProvider
}

// NewProvider creates the meter provider and registers it globally. With the
// none exporter instruments still work but nothing leaves the process.
func NewProvider(ctx context.Context, cfg ProviderConfig, extra ...sdkmetric.Option) (*Provider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(buildResource(ctx, cfg))}

	if cfg.Exporter != constants.EXPORTER_NONE {
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}

		interval := cfg.ExportInterval
		if interval == 0 {
			interval = constants.DEFAULT_EXPORT_INTERVAL * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		))
	}
	opts = append(opts, extra...)

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	return &Provider{mp: mp}, nil
}

// Meter returns the meter used for container instruments.
func (p *Provider) Meter() metric.Meter {
	return p.mp.Meter(constants.INSTRUMENTATION)
}

// ForceFlush exports everything recorded so far.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.mp.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

func newExporter(ctx context.Context, cfg ProviderConfig) (sdkmetric.Exporter, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = constants.DEFAULT_OTLP_ENDPOINT
	}

	switch cfg.Exporter {
	case constants.EXPORTER_OTLP_HTTP, "":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithTimeout(exportTimeout),
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
				Enabled:         true,
				InitialInterval: 5 * time.Second,
				MaxInterval:     30 * time.Second,
				MaxElapsedTime:  2 * time.Minute,
			}),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		return exp, nil

	case constants.EXPORTER_OTLP_GRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithTimeout(exportTimeout),
			otlpmetricgrpc.WithRetry(otlpmetricgrpc.RetryConfig{
				Enabled:         true,
				InitialInterval: 5 * time.Second,
				MaxInterval:     30 * time.Second,
				MaxElapsedTime:  2 * time.Minute,
			}),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		return exp, nil

	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// buildResource describes this host. The resource is not merged with
// resource.Default() because that uses a different semconv schema URL.
func buildResource(ctx context.Context, cfg ProviderConfig) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = constants.SERVICE_NAME
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		attribute.String("os.type", runtime.GOOS),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		attrs = append(attrs,
			semconv.HostName(info.Hostname),
			semconv.HostID(info.HostID),
			semconv.HostArchKey.String(info.KernelArch),
			attribute.String("os.description", fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)),
			attribute.String("os.kernel.version", info.KernelVersion),
		)
	} else if hostname, herr := os.Hostname(); herr == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
