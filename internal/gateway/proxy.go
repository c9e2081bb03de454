package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/internal/telemetry"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/middleware"
	"go.uber.org/zap"
)

// hopByHopHeaders は転送してはならないホップバイホップヘッダー。
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// handleForward はprefixを取り除いたパスで転送先にリクエストを転送するハンドラを返す。
// /ms-user/auth/signin/ は転送先の /auth/signin/ になる。
// Authorization、X-Request-ID、X-Authenticated-Subjectヘッダーは転送先に引き継がれる。
func (s *Server) handleForward(client *httpclient.Client, name, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := upstreamURL(c.Request.URL, prefix)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "不正なリクエストパスです"})
			return
		}
		path := target.EscapedPath()

		header := forwardHeader(c.Request.Header)
		header.Set("X-Forwarded-For", c.ClientIP())
		header.Set("X-Forwarded-Host", c.Request.Host)
		telemetry.InjectHeaders(c.Request.Context(), header)

		resp, err := client.Forward(c.Request.Context(), c.Request.Method, target, header, c.Request.Body)
		if err != nil {
			s.observeUpstream(name, "error")
			s.logger.Error("転送先との通信に失敗しました",
				zap.String("upstream", name),
				zap.String("upstream_url", client.BaseURL()),
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
			c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
			return
		}
		defer func() { _ = resp.Body.Close() }()
		s.observeUpstream(name, strconv.Itoa(resp.StatusCode))

		for key, values := range forwardHeader(resp.Header) {
			for _, v := range values {
				c.Writer.Header().Add(key, v)
			}
		}
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			s.logger.Warn("レスポンスの転送が途中で失敗しました",
				zap.String("upstream", name),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
		}
	}
}

// upstreamURL はリクエストURLからprefixを取り除いた転送先の相対URLを返す。
// エスケープされたパスを引き継ぐため、%2Fや%3Fが転送先で別の意味にならない。
func upstreamURL(u *url.URL, prefix string) (*url.URL, error) {
	escaped, ok := strings.CutPrefix(u.EscapedPath(), prefix)
	if !ok {
		// 接頭辞自体がエスケープされている場合はデコード済みのパスから組み立て直す
		rest, _ := strings.CutPrefix(u.Path, prefix)
		escaped = (&url.URL{Path: rest}).EscapedPath()
	}
	if escaped == "" {
		escaped = "/"
	}

	path, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("パスのデコードに失敗: %w", err)
	}
	return &url.URL{Path: path, RawPath: escaped, RawQuery: u.RawQuery}, nil
}

// forwardHeader はホップバイホップヘッダーを除いたヘッダーのコピーを返す。
// Connectionヘッダーで指定されたヘッダーも除く。
func forwardHeader(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = http.Header{}
	}
	for _, v := range src.Values("Connection") {
		for name := range strings.SplitSeq(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	return dst
}

// observeUpstream はメトリクスが設定されていれば転送結果を数える。
func (s *Server) observeUpstream(name, code string) {
	if s.metrics != nil {
		s.metrics.ObserveUpstream(name, code)
	}
}
