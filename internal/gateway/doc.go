// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// すべてのリクエストは認証ゲートとアクセス判定を通ってからms-userサービスへ転送される。
// 認証不要のパス（サインアップとサインイン）以外は、検証済みのBearerトークンが無ければ401を返す。
// /healthと/metricsは認証ゲートの外にあり、常に公開される。
package gateway
