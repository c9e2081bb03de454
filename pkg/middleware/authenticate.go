package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/verifier"
	"go.uber.org/zap"
)

const (
	// bearerPrefix はAuthorizationヘッダーのBearerスキーム接頭辞。大文字小文字を区別する。
	bearerPrefix = "Bearer "
	// HeaderAuthenticatedSubject は下流サービスに認証済みの主体を伝えるリクエストヘッダー。
	HeaderAuthenticatedSubject = "X-Authenticated-Subject"
)

// Authenticate はBearerトークンを検証する認証ゲートのGinミドルウェアを返す。
//
//   - Authorizationヘッダーが無い、またはBearer接頭辞が無い場合は未認証のまま次に進む。
//   - トークンがある場合は検証が完了するまで次に進まない。
//   - 検証に成功した場合はSecurityContextをリクエストのコンテキストに設定して次に進む。
//   - 検証に失敗した場合は空ボディの401を返し、以降のハンドラーは実行しない。
//
// 未認証リクエストの拒否はRequireAuthenticatedが行う。
func Authenticate(v verifier.Verifier, opts ...Option) gin.HandlerFunc {
	o := newOptions(opts...)

	return func(c *gin.Context) {
		// クライアントが主体を詐称できないよう、受信したヘッダーは常に捨てる
		c.Request.Header.Del(HeaderAuthenticatedSubject)

		if o.skip != nil && o.skip.IsExempt(c.Request.URL.Path) {
			o.observe(c, Decision{Stage: StageGate, Outcome: OutcomeSkipped})
			c.Next()
			return
		}

		start := time.Now()
		outcome := o.authenticate(c.Request.Context(), v, c.GetHeader("Authorization"))
		elapsed := time.Since(start)

		switch outcome.Kind {
		case verifier.KindUnauthenticated:
			o.observe(c, Decision{Stage: StageGate, Outcome: OutcomeNoToken})
			c.Next()
		case verifier.KindAuthenticated:
			sc := NewSecurityContext(outcome.Identity)
			c.Request = c.Request.WithContext(WithSecurityContext(c.Request.Context(), sc))
			c.Request.Header.Set(HeaderAuthenticatedSubject, sc.Subject())
			c.Set(keySubject, sc.Subject())
			c.Set(keyEmail, sc.Email())

			o.observe(c, Decision{
				Stage:    StageGate,
				Outcome:  OutcomeAuthenticated,
				Subject:  sc.Subject(),
				Duration: elapsed,
			})
			c.Next()
		default:
			reason := verifier.ReasonOf(outcome.Err)
			o.logger.Warn("トークンの検証に失敗しました",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", httpclient.RequestIDFrom(c.Request.Context())),
				zap.String("reason", string(reason)),
				zap.Error(outcome.Err),
			)
			o.observe(c, Decision{
				Stage:    StageGate,
				Outcome:  OutcomeRejected,
				Reason:   string(reason),
				Duration: elapsed,
			})
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	}
}

// authenticate はAuthorizationヘッダーから検証結果を得る。
// Bearerトークンが無ければ検証せずに未認証の結果を返す。
func (o *options) authenticate(ctx context.Context, v verifier.Verifier, header string) verifier.Outcome {
	token, found := bearerToken(header)
	if !found {
		return verifier.Unauthenticated()
	}
	return o.verify(ctx, v, token)
}

// verify は検証を開始し、完了かタイムアウトまで待つ。
func (o *options) verify(ctx context.Context, v verifier.Verifier, token string) verifier.Outcome {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return verifier.Start(ctx, v, token).Wait(ctx)
}

// bearerToken はAuthorizationヘッダーからBearer接頭辞を除いたトークンを取り出す。
// 接頭辞が無い場合はfoundがfalseになる。接頭辞のみの場合は空のトークンを返す。
func bearerToken(header string) (token string, found bool) {
	if t, ok := strings.CutPrefix(header, bearerPrefix); ok {
		return t, true
	}
	return "", false
}
