package middleware

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/pkg/verifier"
)

const (
	// RoleUser は認証済みユーザーに必ず付与される権限。
	RoleUser = "ROLE_USER"
	// RoleAdmin はrolesクレームにadminを持つ主体の権限。
	RoleAdmin = "ROLE_ADMIN"
)

const (
	// keySubject はGinコンテキストに主体を格納するキー。
	keySubject = "subject"
	// keyEmail はGinコンテキストにメールアドレスを格納するキー。
	keyEmail = "email"
)

// SecurityContext は1リクエストに紐づく検証済みアイデンティティと権限。
// フィールドは非公開で、生成後に変更できない。
type SecurityContext struct {
	identity    verifier.Identity
	authorities []string
}

// NewSecurityContext は検証済みアイデンティティからSecurityContextを生成する。
// 権限はROLE_USERに、rolesクレームの各ロールをROLE_<大文字>として加えたもの。
func NewSecurityContext(identity verifier.Identity) *SecurityContext {
	authorities := []string{RoleUser}
	for _, role := range identity.Roles() {
		authority := "ROLE_" + strings.ToUpper(role)
		if !slices.Contains(authorities, authority) {
			authorities = append(authorities, authority)
		}
	}

	return &SecurityContext{
		identity:    verifier.NewIdentity(identity.Subject, identity.Email, identity.Claims),
		authorities: authorities,
	}
}

// Subject はセキュリティコンテキストの主体を返す。メールアドレスがあればメールアドレス。
func (s *SecurityContext) Subject() string {
	return s.identity.Principal()
}

// Email はメールアドレスを返す。
func (s *SecurityContext) Email() string {
	return s.identity.Email
}

// ProviderSubject はIDプロバイダー上の利用者識別子を返す。
func (s *SecurityContext) ProviderSubject() string {
	return s.identity.Subject
}

// Claims はクレームのコピーを返す。
func (s *SecurityContext) Claims() map[string]any {
	return maps.Clone(s.identity.Claims)
}

// Authorities は付与された権限のコピーを返す。
func (s *SecurityContext) Authorities() []string {
	return slices.Clone(s.authorities)
}

// HasAuthority は指定した権限を持つかどうかを返す。
func (s *SecurityContext) HasAuthority(authority string) bool {
	return slices.Contains(s.authorities, authority)
}

// securityContextKey はcontext.Contextに格納する際のキー型。
type securityContextKey struct{}

// WithSecurityContext はctxにSecurityContextを設定したコンテキストを返す。
// 既に設定されている場合は上書きせずctxをそのまま返す。
func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	if sc == nil {
		return ctx
	}
	if _, ok := SecurityContextFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFrom はctxからSecurityContextを取り出す。
func SecurityContextFrom(ctx context.Context) (*SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc, ok && sc != nil
}

// CurrentSecurityContext はリクエストのコンテキストからSecurityContextを取り出す。
// Authenticateミドルウェアが検証に成功した場合のみ存在する。
func CurrentSecurityContext(c *gin.Context) (*SecurityContext, bool) {
	return SecurityContextFrom(c.Request.Context())
}

// GetSubject はGinコンテキストから認証済みの主体を取得する。
// 未認証の場合は空文字列を返す。
func GetSubject(c *gin.Context) string {
	subject, _ := c.Get(keySubject)
	if s, ok := subject.(string); ok {
		return s
	}
	return ""
}
