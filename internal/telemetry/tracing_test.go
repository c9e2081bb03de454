package telemetry

import (
	"context"
	"testing"
)

// TestNewTracing はトレーサープロバイダーの生成を検証する。
func TestNewTracing(t *testing.T) {
	t.Parallel()

	t.Run("送信先が無い場合は何も記録しないこと", func(t *testing.T) {
		t.Parallel()

		tr, err := NewTracing(context.Background(), TracingConfig{ServiceName: "authgate"})
		if err != nil {
			t.Fatalf("NewTracing()でエラーが発生: %v", err)
		}

		_, span := tr.Tracer("test").Start(context.Background(), "span")
		if span.SpanContext().IsValid() {
			t.Error("noopのスパンは有効なSpanContextを持つべきではない")
		}
		span.End()

		if err := tr.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown()でエラーが発生: %v", err)
		}
	})
}

// TestSampler はサンプリング率からサンプラーが選ばれることを検証する。
func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "AlwaysOnSampler"},
		{ratio: 0, want: "AlwaysOffSampler"},
		{ratio: 0.5, want: "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); got != tt.want {
			t.Errorf("sampler(%v).Description() = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}
