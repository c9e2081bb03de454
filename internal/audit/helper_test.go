package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/pkg/middleware"
	"github.com/nao1215/authgate/pkg/verifier"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newAuditedRouter は全トークンを拒否する認証ゲートの判定をsに記録するルーターを生成する。
func newAuditedRouter(s *Store) *gin.Engine {
	reject := verifier.Func(func(context.Context, string) (verifier.Identity, error) {
		return verifier.Identity{}, verifier.NewError(verifier.ReasonSignature, errors.New("署名が一致しません"))
	})

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Authenticate(reject, middleware.WithObserver(s)),
		middleware.RequireAuthenticated(middleware.NewPathPolicy(), middleware.WithObserver(s)),
	)
	router.Any("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

// serveWithToken はBearerトークン付きのGETリクエストを送る。
func serveWithToken(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
