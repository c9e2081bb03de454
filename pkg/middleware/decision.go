package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/pkg/httpclient"
	"go.uber.org/zap"
)

// Stage は判定を下したミドルウェアの段階。
type Stage string

const (
	// StageGate は認証ゲートによる判定。
	StageGate Stage = "gate"
	// StageAccess はアクセス判定による判定。
	StageAccess Stage = "access"
)

// Outcome は判定結果。
type Outcome string

const (
	// OutcomeNoToken はトークン未提示のため未認証のまま通過したことを表す。
	OutcomeNoToken Outcome = "no_token"
	// OutcomeAuthenticated は検証に成功したことを表す。
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeRejected は検証に失敗して401を返したことを表す。
	OutcomeRejected Outcome = "rejected"
	// OutcomeSkipped は認証除外パスのため認証ゲートを通らなかったことを表す。
	OutcomeSkipped Outcome = "skipped"
	// OutcomeExempt は認証除外パスのためアクセスを許可したことを表す。
	OutcomeExempt Outcome = "exempt"
	// OutcomeAllowed は認証済みのためアクセスを許可したことを表す。
	OutcomeAllowed Outcome = "allowed"
	// OutcomeDenied は未認証のため401を返したことを表す。
	OutcomeDenied Outcome = "denied"
)

// Decision は認証ゲートまたはアクセス判定が下した1件の判定。
// トークンそのものは含まない。
type Decision struct {
	// Stage は判定を下した段階。
	Stage Stage
	// Outcome は判定結果。
	Outcome Outcome
	// Subject は認証済みの主体。未認証の場合は空文字列。
	Subject string
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RequestID はリクエストID。
	RequestID string
	// Reason は検証失敗の分類。失敗時のみ設定される。
	Reason string
	// Duration は検証に要した時間。検証を行った場合のみ設定される。
	Duration time.Duration
}

// DecisionObserver は判定を受け取る。メトリクスや監査ログの記録に使う。
// 実装は並行に呼ばれても安全でなければならない。
type DecisionObserver interface {
	ObserveDecision(ctx context.Context, d Decision)
}

// DecisionObserverFunc は関数をDecisionObserverとして扱うためのアダプタ。
type DecisionObserverFunc func(ctx context.Context, d Decision)

// ObserveDecision はf(ctx, d)を呼び出す。
func (f DecisionObserverFunc) ObserveDecision(ctx context.Context, d Decision) {
	f(ctx, d)
}

// Option は認証ゲートとアクセス判定の設定を変更する。
type Option func(*options)

// options はミドルウェア共通の設定。
type options struct {
	logger    *zap.Logger
	timeout   time.Duration
	observers []DecisionObserver
	skip      *PathPolicy
}

// DefaultVerifyTimeout は検証のデフォルトのタイムアウト。
const DefaultVerifyTimeout = 5 * time.Second

// newOptions はデフォルト値にoptsを適用した設定を返す。
func newOptions(opts ...Option) *options {
	o := &options{
		logger:  zap.NewNop(),
		timeout: DefaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithLogger はログ出力先を設定する。
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeout は検証のタイムアウトを設定する。0以下の場合はタイムアウトしない。
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithObserver は判定の通知先を追加する。
func WithObserver(observers ...DecisionObserver) Option {
	return func(o *options) {
		for _, obs := range observers {
			if obs != nil {
				o.observers = append(o.observers, obs)
			}
		}
	}
}

// WithSkipPaths は認証ゲートを通さないパスを設定する。
// 除外パスへのリクエストはトークンの有無にかかわらず検証されない。
func WithSkipPaths(policy PathPolicy) Option {
	return func(o *options) {
		o.skip = &policy
	}
}

// observe は判定にリクエスト情報を補ってすべての通知先に渡す。
func (o *options) observe(c *gin.Context, d Decision) {
	if len(o.observers) == 0 {
		return
	}
	d.Method = c.Request.Method
	d.Path = c.Request.URL.Path
	d.RequestID = httpclient.RequestIDFrom(c.Request.Context())

	for _, obs := range o.observers {
		obs.ObserveDecision(c.Request.Context(), d)
	}
}
