package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nao1215/authgate/pkg/httpclient"
)

// RemoteVerifier はHTTPで公開されたトークン検証エンドポイントにトークンを送って検証する。
//
// リクエスト: POST <path> {"token": "..."}
// 成功時: 200 {"subject": "...", "email": "...", "claims": {...}}
// 失敗時: 4xx {"reason": "expired"} など
type RemoteVerifier struct {
	client *httpclient.Client
	path   string
}

// remoteRequest は検証エンドポイントへのリクエストボディ。
type remoteRequest struct {
	Token string `json:"token"`
}

// remoteResponse は検証エンドポイントの成功レスポンス。
type remoteResponse struct {
	Subject string         `json:"subject"`
	Email   string         `json:"email"`
	Claims  map[string]any `json:"claims"`
}

// remoteFailure は検証エンドポイントの失敗レスポンス。
type remoteFailure struct {
	Reason string `json:"reason"`
}

// NewRemoteVerifier はRemoteVerifierを生成する。pathが空の場合は "/verify" を使う。
func NewRemoteVerifier(baseURL, path string, timeout time.Duration) *RemoteVerifier {
	if path == "" {
		path = "/verify"
	}
	return &RemoteVerifier{
		client: httpclient.New(baseURL, timeout),
		path:   path,
	}
}

// Verify はトークンをリモートの検証エンドポイントに送信する。
func (r *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, NewError(ReasonMalformed, errEmptyToken)
	}

	var resp remoteResponse
	if err := r.client.PostJSON(ctx, r.path, remoteRequest{Token: token}, &resp); err != nil {
		return Identity{}, classifyRemoteError(err)
	}
	if resp.Subject == "" {
		return Identity{}, NewError(ReasonInvalidClaims, errors.New("検証レスポンスのsubjectが空です"))
	}

	return NewIdentity(resp.Subject, resp.Email, resp.Claims), nil
}

// classifyRemoteError はHTTPクライアントのエラーを検証失敗の分類に変換する。
func classifyRemoteError(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Classify(err)
		}
		return NewError(ReasonUnreachable, err)
	}

	switch {
	case statusErr.StatusCode >= http.StatusInternalServerError:
		return NewError(ReasonUnreachable, err)
	case statusErr.StatusCode == http.StatusBadRequest:
		return NewError(ReasonMalformed, err)
	case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
		return NewError(remoteReason(statusErr.Body), err)
	default:
		return NewError(ReasonInternal, fmt.Errorf("予期しないステータス: %w", err))
	}
}

// remoteReason は失敗レスポンスのreasonを分類に変換する。不明な値は署名不一致として扱う。
func remoteReason(body []byte) Reason {
	var f remoteFailure
	if err := json.Unmarshal(body, &f); err != nil {
		return ReasonSignature
	}

	switch Reason(f.Reason) {
	case ReasonMalformed, ReasonExpired, ReasonRevoked, ReasonSignature, ReasonInvalidClaims:
		return Reason(f.Reason)
	default:
		return ReasonSignature
	}
}
