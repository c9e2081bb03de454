package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig はCORSミドルウェアの設定。
type CORSConfig struct {
	// AllowedOrigins はクロスオリジンリクエストを許可するオリジン。
	AllowedOrigins []string
	// AllowedMethods は許可するHTTPメソッド。空の場合はデフォルト値を使う。
	AllowedMethods []string
	// AllowedHeaders は許可するリクエストヘッダー。空の場合はデフォルト値を使う。
	AllowedHeaders []string
	// MaxAge はプリフライト結果のキャッシュ期間。0の場合は24時間。
	MaxAge time.Duration
}

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
)

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// プリフライトリクエストは認証ゲートより前で204を返して終了する。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o != "" {
			originsSet[o] = struct{}{}
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")
	maxAgeSeconds := strconv.Itoa(int(maxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, allowed := originsSet[origin]
		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
			c.Header("Access-Control-Max-Age", maxAgeSeconds)
			c.Header("Vary", "Origin")
		}

		if allowed && c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
