package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/authgate/pkg/httpclient"
)

// keyRequestID はGinコンテキストにリクエストIDを格納するキー。
const keyRequestID = "request_id"

// maxRequestIDLength は受け入れるリクエストIDの最大長。超える場合は新しく採番する。
const maxRequestIDLength = 128

// RequestID はリクエストIDを付与するGinミドルウェアを返す。
// X-Request-IDヘッダーがあればそれを引き継ぎ、無ければUUIDを採番する。
// リクエストIDはリクエストのコンテキストとレスポンスヘッダーに設定される。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(httpclient.HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Request = c.Request.WithContext(httpclient.WithRequestID(c.Request.Context(), id))
		c.Set(keyRequestID, id)
		c.Header(httpclient.HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
func GetRequestID(c *gin.Context) string {
	if id := c.GetString(keyRequestID); id != "" {
		return id
	}
	return httpclient.RequestIDFrom(c.Request.Context())
}
