package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	// FirebaseJWKSURL はFirebase IDトークンの署名鍵を公開しているJWKSエンドポイント。
	FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	// firebaseIssuerPrefix はFirebase IDトークンのissクレームの接頭辞。
	firebaseIssuerPrefix = "https://securetoken.google.com/"
)

// FirebaseConfig はFirebaseVerifierの設定。
type FirebaseConfig struct {
	// ProjectID はFirebaseプロジェクトID。audとissの検証に使う。
	ProjectID string
	// JWKSURL は署名鍵の取得先。空の場合はFirebaseJWKSURLを使う。
	JWKSURL string
	// RefreshInterval は署名鍵を再取得する最小間隔。0の場合は15分。
	RefreshInterval time.Duration
	// Leeway は時刻検証で許容するずれ。
	Leeway time.Duration
	// HTTPClient は署名鍵の取得に使うクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// FirebaseVerifier はFirebase IDトークンを検証する。
// 署名鍵はjwk.Cacheで保持し、検証結果そのものはキャッシュしない。
type FirebaseVerifier struct {
	projectID string
	jwksURL   string
	keys      *jwk.Cache
	leeway    time.Duration
	now       func() time.Time
}

// NewFirebaseVerifier はFirebaseVerifierを生成し、署名鍵の取得先を登録する。
// ctxはjwk.Cacheのバックグラウンド更新の寿命を決める。
func NewFirebaseVerifier(ctx context.Context, cfg FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("FirebaseプロジェクトIDが設定されていません")
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = FirebaseJWKSURL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL,
		jwk.WithMinRefreshInterval(cfg.RefreshInterval),
		jwk.WithHTTPClient(cfg.HTTPClient),
	); err != nil {
		return nil, fmt.Errorf("JWKSの登録に失敗: %w", err)
	}

	return &FirebaseVerifier{
		projectID: cfg.ProjectID,
		jwksURL:   cfg.JWKSURL,
		keys:      cache,
		leeway:    cfg.Leeway,
		now:       time.Now,
	}, nil
}

// Verify はFirebase IDトークンの署名とクレームを検証する。
func (f *FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, NewError(ReasonMalformed, errEmptyToken)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, f.keyFunc(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(firebaseIssuerPrefix+f.projectID),
		jwt.WithAudience(f.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(f.leeway),
		jwt.WithTimeFunc(f.now),
	)
	if err != nil {
		return Identity{}, classifyJWTError(err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, NewError(ReasonInvalidClaims, errors.New("subクレームが空です"))
	}
	if len(subject) > 128 {
		return Identity{}, NewError(ReasonInvalidClaims, errors.New("subクレームが128文字を超えています"))
	}
	if authTime, ok := claims["auth_time"].(float64); ok {
		if time.Unix(int64(authTime), 0).After(f.now().Add(f.leeway)) {
			return Identity{}, NewError(ReasonInvalidClaims, errors.New("auth_timeが未来の時刻です"))
		}
	}

	email, _ := claims["email"].(string)
	return NewIdentity(subject, email, claims), nil
}

// keyFunc はトークンヘッダーのkidに対応する公開鍵を返すjwt.Keyfuncを生成する。
func (f *FirebaseVerifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, NewError(ReasonMalformed, errors.New("kidヘッダーがありません"))
		}

		set, err := f.keys.Get(ctx, f.jwksURL)
		if err != nil {
			return nil, NewError(ReasonUnreachable, fmt.Errorf("JWKSの取得に失敗: %w", err))
		}

		key, found := set.LookupKeyID(kid)
		if !found {
			return nil, NewError(ReasonSignature, fmt.Errorf("kid %q に対応する鍵がありません", kid))
		}

		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, NewError(ReasonSignature, fmt.Errorf("公開鍵の変換に失敗: %w", err))
		}
		return raw, nil
	}
}

// classifyJWTError はgolang-jwtのエラーを検証失敗の分類に変換する。
func classifyJWTError(err error) error {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return NewError(ve.Reason, err)
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return NewError(ReasonMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return NewError(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return NewError(ReasonSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return NewError(ReasonInvalidClaims, err)
	default:
		return NewError(ReasonInternal, err)
	}
}
