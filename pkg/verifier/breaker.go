package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig はサーキットブレーカーの設定。
type BreakerConfig struct {
	// Name はブレーカーの名前。ログに出力される。
	Name string
	// MaxRequests は半開状態で通すリクエスト数。
	MaxRequests uint32
	// Interval は閉状態で失敗数をリセットする間隔。
	Interval time.Duration
	// Timeout は開状態から半開状態に移るまでの時間。
	Timeout time.Duration
	// FailureThreshold は開状態に移る連続失敗数。
	FailureThreshold uint32
}

// Breaker はIDプロバイダーへの到達失敗が続いた場合に呼び出しを遮断するVerifier。
// 遮断中はプロバイダーを呼び出さずに即座に失敗を返す。リトライは行わない。
type Breaker struct {
	next Verifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker はnextをサーキットブレーカーで包む。
func NewBreaker(next Verifier, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "identity-provider"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("サーキットブレーカーの状態が変化しました",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// トークン自体の不正はプロバイダーの障害ではない
		IsSuccessful: func(err error) bool {
			switch ReasonOf(err) {
			case ReasonUnreachable, ReasonTimeout:
				return false
			default:
				return true
			}
		},
	}

	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Verify はブレーカーが閉じていればnextを呼び出す。
func (b *Breaker) Verify(ctx context.Context, token string) (Identity, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.next.Verify(ctx, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Identity{}, NewError(ReasonCircuitOpen, err)
		}
		return Identity{}, Classify(err)
	}

	identity, _ := result.(Identity)
	return identity, nil
}

// State はブレーカーの現在の状態を返す。
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
