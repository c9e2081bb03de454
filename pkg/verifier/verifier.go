package verifier

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// Identity は検証に成功したトークンから得られるアイデンティティを表す。
// 生成後に変更してはならない。
type Identity struct {
	// Subject はIDプロバイダー上の利用者識別子（Firebaseではuid）。
	Subject string
	// Email は利用者のメールアドレス。トークンに含まれない場合は空文字列。
	Email string
	// Claims はデコード済みトークンのクレーム。
	Claims map[string]any
}

// NewIdentity はクレームをコピーしてIdentityを生成する。
func NewIdentity(subject, email string, claims map[string]any) Identity {
	return Identity{
		Subject: subject,
		Email:   email,
		Claims:  maps.Clone(claims),
	}
}

// Principal はセキュリティコンテキストの主体として使う識別子を返す。
// メールアドレスがあればそれを、無ければSubjectを返す。
func (id Identity) Principal() string {
	if id.Email != "" {
		return id.Email
	}
	return id.Subject
}

// Roles は "roles" クレームに含まれる文字列のロール一覧を返す。
func (id Identity) Roles() []string {
	raw, ok := id.Claims["roles"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		roles := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Verifier はBearerトークンを検証する。
// 実装は外部プロバイダーへの呼び出しを1回だけ行い、失敗は *VerificationError として返す。
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Func は関数をVerifierとして扱うためのアダプタ。
type Func func(ctx context.Context, token string) (Identity, error)

// Verify はf(ctx, token)を呼び出す。
func (f Func) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// ErrVerification はすべての検証失敗にマッチするセンチネルエラー。
var ErrVerification = errors.New("トークンの検証に失敗")

// Reason は検証失敗の内部的な分類。クライアントには公開せず、ログとメトリクスにのみ使う。
type Reason string

const (
	// ReasonMalformed はトークンの形式が不正であることを表す。
	ReasonMalformed Reason = "malformed"
	// ReasonExpired はトークンの有効期限切れを表す。
	ReasonExpired Reason = "expired"
	// ReasonRevoked はトークンが失効済みであることを表す。
	ReasonRevoked Reason = "revoked"
	// ReasonSignature は署名の不一致を表す。
	ReasonSignature Reason = "signature"
	// ReasonInvalidClaims は発行者・オーディエンス等のクレーム不正を表す。
	ReasonInvalidClaims Reason = "invalid_claims"
	// ReasonUnreachable はIDプロバイダーに到達できなかったことを表す。
	ReasonUnreachable Reason = "unreachable"
	// ReasonTimeout は検証がタイムアウトしたことを表す。
	ReasonTimeout Reason = "timeout"
	// ReasonCanceled はリクエストが取り消されたことを表す。
	ReasonCanceled Reason = "canceled"
	// ReasonCircuitOpen はサーキットブレーカーが開いていることを表す。
	ReasonCircuitOpen Reason = "circuit_open"
	// ReasonInternal は検証処理自体の予期しない失敗を表す。
	ReasonInternal Reason = "internal"
)

// VerificationError は検証失敗を表す唯一のエラー型。
// 原因となったエラーはErrで保持し、errors.Is/Asで辿れる。
type VerificationError struct {
	// Reason は失敗の分類。
	Reason Reason
	// Err は原因となったエラー。
	Err error
}

// NewError は指定した分類のVerificationErrorを生成する。
func NewError(reason Reason, err error) *VerificationError {
	return &VerificationError{Reason: reason, Err: err}
}

// Error はエラーメッセージを返す。
func (e *VerificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", ErrVerification, e.Reason)
	}
	return fmt.Sprintf("%v (%s): %v", ErrVerification, e.Reason, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is はtargetがErrVerificationの場合にtrueを返す。
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerification
}

// Classify は任意のエラーをVerificationErrorに変換する。
// 既にVerificationErrorであればそのまま返す。
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ReasonTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewError(ReasonCanceled, err)
	default:
		return NewError(ReasonInternal, err)
	}
}

// ReasonOf はerrに含まれる検証失敗の分類を返す。
func ReasonOf(err error) Reason {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	if err == nil {
		return ""
	}
	return ReasonInternal
}
