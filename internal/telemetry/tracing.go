package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// otlpTimeout はOTLPエクスポーターの送信期限。
const otlpTimeout = 10 * time.Second

// TracingConfig はトレーサープロバイダーの設定。
type TracingConfig struct {
	ServiceName string
	// Endpoint はOTLP/gRPCの送信先。空の場合はトレースを記録しない。
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// Tracing はトレーサープロバイダーとその終了処理を保持する。
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewTracing はcfgに従ってトレーサープロバイダーを生成し、グローバルに登録する。
// Endpointが空の場合は何も記録しないプロバイダーを返す。
func NewTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	if cfg.Endpoint == "" {
		return &Tracing{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(otlpTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("OTLPエクスポーターの生成に失敗: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("リソースの生成に失敗: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRatio))),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracing{provider: provider, shutdown: provider.Shutdown}, nil
}

// sampler はサンプリング率に応じたサンプラーを返す。
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

// Tracer は名前付きのトレーサーを返す。
func (t *Tracing) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

// Shutdown は未送信のスパンを送信してプロバイダーを終了する。
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
