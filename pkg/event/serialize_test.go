package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("DecisionDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := DecisionData{
			Subject:        "a@b.com",
			Method:         "GET",
			Path:           "/ms-user/profile",
			DurationMillis: 12,
		}

		before := time.Now().UTC()
		ev, err := New("req-1", TypeRequestAuthenticated, data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.RequestID != "req-1" {
			t.Errorf("RequestID = %q, want %q", ev.RequestID, "req-1")
		}
		if ev.EventType != TypeRequestAuthenticated {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeRequestAuthenticated)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		decoded, err := DecodeData[DecisionData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if *decoded != data {
			t.Errorf("Data = %+v, want %+v", *decoded, data)
		}
	})

	t.Run("連続して生成したイベントのIDが異なること", func(t *testing.T) {
		t.Parallel()

		ev1, err := New("req-2", TypeAccessDenied, DecisionData{Method: "GET", Path: "/"})
		if err != nil {
			t.Fatalf("1回目のNew()でエラーが発生: %v", err)
		}
		ev2, err := New("req-2", TypeAccessDenied, DecisionData{Method: "GET", Path: "/"})
		if err != nil {
			t.Fatalf("2回目のNew()でエラーが発生: %v", err)
		}

		if ev1.ID == ev2.ID {
			t.Errorf("異なるイベントが同じIDを持っている: %q", ev1.ID)
		}
	})

	t.Run("シリアライズ不可能なデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ev, err := New("req-3", TypeRequestRejected, make(chan int))
		if err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
		if ev != nil {
			t.Error("エラー時にnilでないEventが返った")
		}
	})

	t.Run("未知のイベントの種類でエラーが返ること", func(t *testing.T) {
		t.Parallel()

		for _, typ := range []Type{"", "TokenIssued"} {
			if _, err := New("req-4", typ, DecisionData{Method: "GET", Path: "/"}); err == nil {
				t.Errorf("New(%q)がエラーを返すべきだが、nilが返った", typ)
			}
		}
	})
}

// TestDecodeData はDecodeData関数を検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("不正なJSONデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{invalid json`)}

		decoded, err := DecodeData[DecisionData](ev)
		if err == nil {
			t.Fatal("DecodeData()がエラーを返すべきだが、nilが返った")
		}
		if decoded != nil {
			t.Error("エラー時にnilでないデータが返った")
		}
	})

	t.Run("空のJSONオブジェクトからゼロ値にデコードできること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{}`)}

		decoded, err := DecodeData[DecisionData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if *decoded != (DecisionData{}) {
			t.Errorf("Data = %+v, want zero value", *decoded)
		}
	})
}
