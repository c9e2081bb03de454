// Package event は認証ゲートとアクセス判定が下した判定を監査用のイベントとして表現する。
package event

import (
	"encoding/json"
	"time"
)

// Type は認証判定イベントの種類を表す。
type Type string

const (
	// TypeRequestAuthenticated はトークンの検証に成功したことを表す。
	TypeRequestAuthenticated Type = "RequestAuthenticated"
	// TypeRequestRejected はトークンの検証に失敗し401を返したことを表す。
	TypeRequestRejected Type = "RequestRejected"
	// TypeRequestPassedThrough はトークン未提示のまま認証ゲートを通過したことを表す。
	TypeRequestPassedThrough Type = "RequestPassedThrough"
	// TypeGateSkipped は認証除外パスのため認証ゲートを通らなかったことを表す。
	TypeGateSkipped Type = "GateSkipped"
	// TypeAccessGranted は認証済みのためアクセスを許可したことを表す。
	TypeAccessGranted Type = "AccessGranted"
	// TypeAccessDenied は未認証のためアクセスを拒否したことを表す。
	TypeAccessDenied Type = "AccessDenied"
	// TypeAccessExempted は認証除外パスのためアクセスを許可したことを表す。
	TypeAccessExempted Type = "AccessExempted"
)

// Valid は既知のイベントの種類であればtrueを返す。
func (t Type) Valid() bool {
	switch t {
	case TypeRequestAuthenticated, TypeRequestRejected, TypeRequestPassedThrough, TypeGateSkipped,
		TypeAccessGranted, TypeAccessDenied, TypeAccessExempted:
		return true
	default:
		return false
	}
}

// Event は監査ログに記録される不変のイベントレコードを表す。
// Bearerトークンは含めない。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// RequestID はイベントの発生元となったリクエストのID。
	RequestID string `json:"request_id"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// DecisionData は認証判定イベントのデータ。
type DecisionData struct {
	// Subject は認証済みの主体。未認証の場合は空。
	Subject string `json:"subject,omitempty"`
	// Method はHTTPメソッド。
	Method string `json:"method"`
	// Path はリクエストパス。
	Path string `json:"path"`
	// Reason は検証失敗の分類。
	Reason string `json:"reason,omitempty"`
	// DurationMillis は検証に要した時間（ミリ秒）。
	DurationMillis int64 `json:"duration_ms,omitempty"`
}
