package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/internal/audit"
	"github.com/nao1215/authgate/pkg/event"
	"github.com/nao1215/authgate/pkg/middleware"
	"go.uber.org/zap"
)

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	}
}

// whoAmIResponse は/gateway/whoamiのレスポンス。
type whoAmIResponse struct {
	Subject         string         `json:"subject"`
	Email           string         `json:"email,omitempty"`
	ProviderSubject string         `json:"provider_subject"`
	Authorities     []string       `json:"authorities"`
	Claims          map[string]any `json:"claims,omitempty"`
}

// handleWhoAmI は認証済みの主体と権限を返すハンドラを返す。
func (s *Server) handleWhoAmI() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, ok := middleware.CurrentSecurityContext(c)
		if !ok {
			// アクセス判定を通っていれば到達しない
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.JSON(http.StatusOK, whoAmIResponse{
			Subject:         sc.Subject(),
			Email:           sc.Email(),
			ProviderSubject: sc.ProviderSubject(),
			Authorities:     sc.Authorities(),
			Claims:          sc.Claims(),
		})
	}
}

// handleAudit は監査ログの最新のイベントを返すハンドラを返す。
// ROLE_ADMINを持つ主体には全主体のイベントを、それ以外には自身のイベントのみを返す。
// クエリパラメータlimitで件数を指定する。
func (s *Server) handleAudit() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, ok := middleware.CurrentSecurityContext(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		limit := audit.DefaultLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limitは正の整数で指定してください"})
				return
			}
			limit = n
		}

		var (
			events []*event.Event
			err    error
		)
		if sc.HasAuthority(middleware.RoleAdmin) {
			events, err = s.audit.Recent(c.Request.Context(), limit)
		} else {
			events, err = s.audit.RecentBySubject(c.Request.Context(), sc.Subject(), limit)
		}
		if err != nil {
			s.logger.Error("監査ログの取得に失敗しました", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "監査ログの取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}
