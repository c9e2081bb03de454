package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/authgate/internal/audit"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/internal/telemetry"
	"go.uber.org/zap"
)

// tracerName はゲートウェイのトレーサー名。
const tracerName = "github.com/nao1215/authgate"

// Bootstrap は設定からメトリクス、トレース、監査ストア、Verifierを構成してServerを生成する。
// 返されるclose関数でトレースの送信と監査ストアを終了する。
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, func(context.Context) error, error) {
	tracing, err := telemetry.NewTracing(ctx, telemetry.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.OTLPInsecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("トレースの初期化に失敗: %w", err)
	}
	closers := []func(context.Context) error{tracing.Shutdown}
	closeAll := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	metrics := telemetry.NewMetrics(telemetry.DefaultNamespace)
	tracer := tracing.Tracer(tracerName)
	opts := []Option{
		WithLogger(logger),
		WithMetrics(metrics),
		WithTracer(tracer),
	}

	if cfg.Audit.DSN != "" {
		store, err := audit.Open(ctx, cfg.Audit.DSN, logger)
		if err != nil {
			_ = closeAll(ctx)
			return nil, nil, fmt.Errorf("監査ストアの初期化に失敗: %w", err)
		}
		closers = append(closers, func(context.Context) error { return store.Close() })
		opts = append(opts, WithAuditStore(store))
	}

	v, err := NewVerifier(ctx, cfg.Auth, tracer, metrics, logger)
	if err != nil {
		_ = closeAll(ctx)
		return nil, nil, err
	}

	server, err := NewServer(cfg, v, opts...)
	if err != nil {
		_ = closeAll(ctx)
		return nil, nil, err
	}
	return server, closeAll, nil
}
