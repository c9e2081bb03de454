package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/pkg/httpclient"
	"go.uber.org/zap"
)

// DefaultExemptPaths は認証不要のパス。ms-userのサインアップとサインイン。
var DefaultExemptPaths = []string{
	"/ms-user/auth/signup/",
	"/ms-user/auth/signin/",
}

// PathPolicy は認証を不要とするパスの完全一致集合。起動時に構築し、以降は変更しない。
type PathPolicy struct {
	exempt map[string]struct{}
}

// NewPathPolicy は指定したパスを認証除外とするPathPolicyを生成する。空文字列は無視する。
func NewPathPolicy(paths ...string) PathPolicy {
	exempt := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p != "" {
			exempt[p] = struct{}{}
		}
	}
	return PathPolicy{exempt: exempt}
}

// IsExempt はpathが認証除外パスと完全一致するかを返す。
func (p PathPolicy) IsExempt(path string) bool {
	_, ok := p.exempt[path]
	return ok
}

// Paths は認証除外パスを昇順で返す。
func (p PathPolicy) Paths() []string {
	paths := make([]string, 0, len(p.exempt))
	for path := range p.exempt {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// RequireAuthenticated はアクセス判定のGinミドルウェアを返す。
// 認証除外パスは無条件に通し、それ以外はSecurityContextが無ければ空ボディの401を返す。
// Authenticateの後に配置する。
func RequireAuthenticated(policy PathPolicy, opts ...Option) gin.HandlerFunc {
	o := newOptions(opts...)

	return func(c *gin.Context) {
		if policy.IsExempt(c.Request.URL.Path) {
			o.observe(c, Decision{Stage: StageAccess, Outcome: OutcomeExempt})
			c.Next()
			return
		}

		sc, ok := CurrentSecurityContext(c)
		if !ok {
			o.logger.Info("未認証のリクエストを拒否しました",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", httpclient.RequestIDFrom(c.Request.Context())),
			)
			o.observe(c, Decision{Stage: StageAccess, Outcome: OutcomeDenied})
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		o.observe(c, Decision{Stage: StageAccess, Outcome: OutcomeAllowed, Subject: sc.Subject()})
		c.Next()
	}
}
