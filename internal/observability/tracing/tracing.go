package tracing

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the instrumentation scope used by doorgate spans
	TracerName = "github.com/aryan0dhankhar/doorgate"

	ServiceName      = "doorgate"
	serviceNamespace = "door-access"
)

var (
	// AttrDoorID tags decision spans with the door asked about
	AttrDoorID = attribute.Key("doorgate.door_id")
	attrRole   = attribute.Key("doorgate.role")
)

// Init exports access-server spans over OTLP HTTP when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. Incoming W3C trace context from the
// door readers is honoured either way; without an endpoint nothing is
// exported.
func Init(ctx context.Context, logger *slog.Logger, environment string) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		logger.Info("tracing disabled: OTEL_EXPORTER_OTLP_ENDPOINT not set")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}
	res, err := serverResource(ctx, environment)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		// a reader that started a trace decides for the whole decision
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing initialized",
		slog.String("endpoint", endpoint),
		slog.String("service", ServiceName),
		slog.String("environment", environment),
	)
	return tp.Shutdown, nil
}

// serverResource describes the access server process
func serverResource(ctx context.Context, environment string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceNamespace(serviceNamespace),
			semconv.DeploymentEnvironment(environment),
			attrRole.String("access-server"),
		),
	)
}

// Tracer returns the doorgate tracer from the global provider
func Tracer() oteltrace.Tracer {
	return otel.Tracer(TracerName)
}
