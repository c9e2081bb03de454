// Package httpclient はゲートウェイから外部サービスへのHTTP通信を行うクライアントを提供する。
//
// リモートのトークン検証エンドポイントへのJSONリクエストと、
// ms-userサービスへのリクエスト転送で使用する。リクエストIDは
// コンテキストから取り出してX-Request-IDヘッダーとして伝播する。
package httpclient
