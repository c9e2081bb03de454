// Package middleware はゲートウェイで使用するGinミドルウェアを提供する。
//
// Bearerトークンを検証してセキュリティコンテキストを付与する認証ゲート、
// 認証除外パスを考慮したアクセス判定、リクエストID付与、リクエストログ、
// パニックリカバリ、CORS設定を含む。
package middleware
