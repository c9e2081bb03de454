package verifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
)

// recordedCall は記録された検証結果。
type recordedCall struct {
	result string
	d      time.Duration
}

// fakeRecorder はDurationRecorderのテスト用実装。
type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) ObserveVerification(result string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{result: result, d: d})
}

// TestInstrument は計装付きVerifierを検証する。
func TestInstrument(t *testing.T) {
	t.Parallel()

	tracer := noop.NewTracerProvider().Tracer("test")

	t.Run("成功時にsuccessが記録されること", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{}
		v := Instrument(Func(func(context.Context, string) (Identity, error) {
			return NewIdentity("uid", "", nil), nil
		}), tracer, rec)

		if _, err := v.Verify(context.Background(), "token"); err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if len(rec.calls) != 1 || rec.calls[0].result != "success" {
			t.Errorf("記録 = %+v, want [success]", rec.calls)
		}
	})

	t.Run("失敗時に分類が記録されエラーがそのまま返ること", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{}
		v := Instrument(Func(func(context.Context, string) (Identity, error) {
			return Identity{}, NewError(ReasonRevoked, nil)
		}), tracer, rec)

		_, err := v.Verify(context.Background(), "token")
		if ReasonOf(err) != ReasonRevoked {
			t.Fatalf("ReasonOf() = %q, want %q", ReasonOf(err), ReasonRevoked)
		}
		if len(rec.calls) != 1 || rec.calls[0].result != "revoked" {
			t.Errorf("記録 = %+v, want [revoked]", rec.calls)
		}
	})

	t.Run("recorderがnilでも動作すること", func(t *testing.T) {
		t.Parallel()

		v := Instrument(Func(func(context.Context, string) (Identity, error) {
			return NewIdentity("uid", "", nil), nil
		}), tracer, nil)

		if _, err := v.Verify(context.Background(), "token"); err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
	})
}
