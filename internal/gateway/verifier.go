package gateway

import (
	"context"
	"fmt"

	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/pkg/verifier"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NewVerifier は設定に従ってVerifierを組み立てる。
// プロバイダー固有のVerifierをサーキットブレーカーで包み、最も外側でトレースと所要時間を記録する。
func NewVerifier(ctx context.Context, cfg config.AuthConfig, tracer trace.Tracer, recorder verifier.DurationRecorder, logger *zap.Logger) (verifier.Verifier, error) {
	var (
		v   verifier.Verifier
		err error
	)

	switch cfg.Verifier {
	case config.VerifierFirebase:
		v, err = verifier.NewFirebaseVerifier(ctx, verifier.FirebaseConfig{
			ProjectID:       cfg.Firebase.ProjectID,
			JWKSURL:         cfg.Firebase.JWKSURL,
			RefreshInterval: cfg.Firebase.RefreshInterval,
			Leeway:          cfg.Firebase.Leeway,
		})
		if err != nil {
			return nil, fmt.Errorf("Firebase Verifierの生成に失敗: %w", err)
		}
	case config.VerifierRemote:
		v = verifier.NewRemoteVerifier(cfg.Remote.URL, cfg.Remote.Path, cfg.VerifyTimeout)
	default:
		return nil, fmt.Errorf("未知のVerifierです: %q", cfg.Verifier)
	}

	if cfg.Breaker.Enabled {
		v = verifier.NewBreaker(v, verifier.BreakerConfig{
			Name:             cfg.Verifier,
			Timeout:          cfg.Breaker.OpenTimeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, logger)
	}

	if tracer != nil {
		v = verifier.Instrument(v, tracer, recorder)
	}

	logger.Info("Verifierを構成しました",
		zap.String("verifier", cfg.Verifier),
		zap.Bool("breaker", cfg.Breaker.Enabled),
		zap.Duration("verify_timeout", cfg.VerifyTimeout),
	)
	return v, nil
}
