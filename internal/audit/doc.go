// Package audit は認証ゲートとアクセス判定の判定結果をSQLiteに記録する監査ストアを提供する。
//
// 記録するのは主体・メソッド・パス・判定・失敗理由のみで、Bearerトークンは保存しない。
// 書き込みの失敗はログに出力するだけで、リクエストの処理結果には影響しない。
package audit
