package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HeaderRequestID はリクエストIDを伝播するためのHTTPヘッダーキー。
const HeaderRequestID = "X-Request-ID"

// maxErrorBody はエラーレスポンスから読み取るボディの上限（バイト）。
const maxErrorBody = 4096

// Client は外部サービス通信用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://ms-user:8000"）を指定する。
// timeoutが0以下の場合は30秒を使う。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError は2xx以外のレスポンスを表す。
type StatusError struct {
	// StatusCode はレスポンスのHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディの先頭部分。
	Body []byte
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, string(e.Body))
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	propagateRequestID(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// Forward はリクエストを加工せずに転送し、レスポンスをそのまま返す。
// refはベースURLからの相対URLで、Path、RawPath、RawQueryを使う。
// RawPathが設定されていればエスケープされたパスをそのまま送る。
// 呼び出し側がレスポンスボディをcloseする必要がある。
func (c *Client) Forward(ctx context.Context, method string, ref *url.URL, header http.Header, body io.Reader) (*http.Response, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("転送リクエストの作成に失敗: %w", err)
	}
	req.URL = target
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	// Content-Lengthヘッダーはトランスポートに無視されるため、長さが分かればフィールドに移す
	if n, err := strconv.ParseInt(req.Header.Get("Content-Length"), 10, 64); err == nil && n >= 0 && body != nil {
		req.ContentLength = n
	}
	propagateRequestID(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("転送リクエストの送信に失敗: %w", err)
	}
	return resp, nil
}

// resolve はrefをベースURLに連結した転送先URLを返す。
func (c *Client) resolve(ref *url.URL) (*url.URL, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLの解析に失敗: %w", err)
	}

	target := *base
	target.Path = strings.TrimSuffix(base.Path, "/") + ref.Path
	target.RawPath = ""
	if ref.RawPath != "" {
		target.RawPath = strings.TrimSuffix(base.EscapedPath(), "/") + ref.RawPath
	}
	target.RawQuery = ref.RawQuery
	target.Fragment = ""
	return &target, nil
}

// propagateRequestID はコンテキストのリクエストIDをヘッダーに設定する。
func propagateRequestID(ctx context.Context, h http.Header) {
	if id := RequestIDFrom(ctx); id != "" {
		h.Set(HeaderRequestID, id)
	}
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 外部サービスへの通信時にリクエストIDを伝播するために使用する。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// RequestIDFrom はコンテキストからリクエストIDを取り出す。設定されていなければ空文字列。
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
