package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger はリクエストごとにアクセスログを出力するGinミドルウェアを返す。
// Authorizationヘッダーとクエリ文字列は出力しない。
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}
		if subject := GetSubject(c); subject != "" {
			fields = append(fields, zap.String("subject", subject))
		}

		switch {
		case status >= 500:
			logger.Error("リクエストを処理しました", fields...)
		case status >= 400:
			logger.Warn("リクエストを処理しました", fields...)
		default:
			logger.Info("リクエストを処理しました", fields...)
		}
	}
}
