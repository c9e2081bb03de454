package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000", 5*time.Second)
		if client.BaseURL() != "http://localhost:8000" {
			t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), "http://localhost:8000")
		}
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})

	t.Run("タイムアウト未指定の場合30秒に設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8000", 0)
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotPath, gotContentType string
		var gotBody testPayload
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		var result testPayload
		if err := client.PostJSON(context.Background(), "/verify", testPayload{Name: "request", Value: 100}, &result); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if gotMethod != http.MethodPost {
			t.Errorf("Method = %q, want %q", gotMethod, http.MethodPost)
		}
		if gotPath != "/verify" {
			t.Errorf("Path = %q, want %q", gotPath, "/verify")
		}
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
		}
		if gotBody.Name != "request" || gotBody.Value != 100 {
			t.Errorf("送信ボディ = %+v, want {request 100}", gotBody)
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v, want {response 200}", result)
		}
	})

	t.Run("2xx以外のレスポンスでStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"reason":"expired"}`))
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		err := client.PostJSON(context.Background(), "/verify", testPayload{}, nil)

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("errors.As(*StatusError) = false, err = %v", err)
		}
		if statusErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusUnauthorized)
		}
		if string(statusErr.Body) != `{"reason":"expired"}` {
			t.Errorf("Body = %q, want %q", statusErr.Body, `{"reason":"expired"}`)
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PostJSON(ctx, "/verify", testPayload{}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("シリアライズ不可能なボディでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1", time.Second)
		if err := client.PostJSON(context.Background(), "/verify", make(chan int), nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		var result testPayload
		if err := client.GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1", time.Second)
		var result testPayload
		if err := client.GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestForward はForward関数を検証する。
func TestForward(t *testing.T) {
	t.Parallel()

	t.Run("メソッド・パス・クエリ・ヘッダー・ボディが転送されること", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotPath, gotQuery, gotAuth, gotBody string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			gotAuth = r.Header.Get("Authorization")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("created"))
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		header := http.Header{}
		header.Set("Authorization", "Bearer abc")

		resp, err := client.Forward(context.Background(), http.MethodPut, &url.URL{Path: "/users/update/1/", RawQuery: "x=1"}, header, strings.NewReader(`{"name":"a"}`))
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if gotMethod != http.MethodPut {
			t.Errorf("Method = %q, want %q", gotMethod, http.MethodPut)
		}
		if gotPath != "/users/update/1/" {
			t.Errorf("Path = %q, want %q", gotPath, "/users/update/1/")
		}
		if gotQuery != "x=1" {
			t.Errorf("RawQuery = %q, want %q", gotQuery, "x=1")
		}
		if gotAuth != "Bearer abc" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc")
		}
		if gotBody != `{"name":"a"}` {
			t.Errorf("Body = %q, want %q", gotBody, `{"name":"a"}`)
		}
	})

	t.Run("転送先が4xxを返してもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		resp, err := client.Forward(context.Background(), http.MethodGet, &url.URL{Path: "/users/99/"}, nil, nil)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("エスケープされたパスがそのまま転送されること", func(t *testing.T) {
		t.Parallel()

		var gotEscaped, gotQuery string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotEscaped = r.URL.EscapedPath()
			gotQuery = r.URL.RawQuery
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client := New(ts.URL+"/api/", time.Second)
		ref := &url.URL{Path: "/users/a?admin=1/b/c", RawPath: "/users/a%3Fadmin=1/b%2Fc", RawQuery: "x=1"}
		resp, err := client.Forward(context.Background(), http.MethodGet, ref, nil, nil)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		if gotEscaped != "/api/users/a%3Fadmin=1/b%2Fc" {
			t.Errorf("EscapedPath = %q, want %q", gotEscaped, "/api/users/a%3Fadmin=1/b%2Fc")
		}
		if gotQuery != "x=1" {
			t.Errorf("RawQuery = %q, want %q", gotQuery, "x=1")
		}
	})
}

// TestWithRequestID はリクエストIDの伝播を検証する。
func TestWithRequestID(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのリクエストIDがヘッダーで伝播されること", func(t *testing.T) {
		t.Parallel()

		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get(HeaderRequestID)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		ctx := WithRequestID(context.Background(), "req-123")
		if err := client.PostJSON(ctx, "/verify", testPayload{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}

		if got != "req-123" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-123")
		}
	})

	t.Run("リクエストIDが無い場合ヘッダーが設定されないこと", func(t *testing.T) {
		t.Parallel()

		hasHeader := true
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasHeader = len(r.Header.Values(HeaderRequestID)) > 0
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		client := New(ts.URL, time.Second)
		if err := client.GetJSON(context.Background(), "/", nil); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}

		if hasHeader {
			t.Error("X-Request-IDヘッダーが設定されるべきではない")
		}
	})

	t.Run("RequestIDFromで設定した値を取り出せること", func(t *testing.T) {
		t.Parallel()

		if got := RequestIDFrom(context.Background()); got != "" {
			t.Errorf("RequestIDFrom() = %q, want empty string", got)
		}
		if got := RequestIDFrom(WithRequestID(context.Background(), "abc")); got != "abc" {
			t.Errorf("RequestIDFrom() = %q, want %q", got, "abc")
		}
	})
}
