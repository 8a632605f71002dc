// Package observability wires distributed tracing around the turn
// pipeline: a gin middleware span per HTTP request and child spans around
// the orchestrator's own concurrent work, exported via OTLP when
// configured.
package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/envutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

const tracerName = "uniroad-agent"

type Config struct {
	ServiceName string
	Environment string
}

var (
	initOnce sync.Once
	shutdown func(context.Context) error = func(context.Context) error { return nil }
)

// Init wires a global TracerProvider when OTEL_ENABLED is set, otherwise
// it leaves the no-op provider OTel installs by default. Call the
// returned func during shutdown to flush any buffered spans.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	initOnce.Do(func() {
		if !envutil.GetEnvAsBool("OTEL_ENABLED", false, log) {
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "uniroad-agent"
		}

		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("deployment.environment", cfg.Environment),
		))
		if err != nil {
			log.Warn("otel resource init failed, continuing without resource attributes", "error", err.Error())
		}

		exporter, err := buildExporter(ctx, log)
		if err != nil {
			log.Warn("otel exporter init failed, tracing disabled", "error", err.Error())
			return
		}

		ratio := envutil.GetEnvAsFloat("OTEL_SAMPLER_RATIO", 0.1, log)
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
		shutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName)
	})
	return shutdown
}

func buildExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	endpoint := envutil.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", log)
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if envutil.GetEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false, log) {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

// Tracer returns the package-scoped tracer; safe to call whether or not
// Init ever ran (OTel's global default is a no-op tracer provider).
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
