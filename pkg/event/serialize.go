package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
// 未知のイベントの種類はエラーになる。
func New(requestID string, eventType Type, data any) (*Event, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("未知のイベントの種類です: %q", eventType)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &Event{
		ID:        uuid.New().String(),
		RequestID: requestID,
		EventType: eventType,
		Data:      jsonData,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
