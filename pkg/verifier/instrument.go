package verifier

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DurationRecorder は検証1回あたりの所要時間を記録する。
type DurationRecorder interface {
	ObserveVerification(result string, d time.Duration)
}

// instrumented はVerifierにトレーシングと所要時間の記録を追加する。
type instrumented struct {
	next     Verifier
	tracer   trace.Tracer
	recorder DurationRecorder
}

// Instrument はnextをOpenTelemetryのスパンと所要時間の記録で包む。
// recorderはnilでもよい。トークンはスパン属性に含めない。
func Instrument(next Verifier, tracer trace.Tracer, recorder DurationRecorder) Verifier {
	return &instrumented{next: next, tracer: tracer, recorder: recorder}
}

// Verify はスパンを開始してからnextを呼び出す。
func (i *instrumented) Verify(ctx context.Context, token string) (Identity, error) {
	ctx, span := i.tracer.Start(ctx, "verifier.Verify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	identity, err := i.next.Verify(ctx, token)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = string(ReasonOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("verifier.result", result))

	if i.recorder != nil {
		i.recorder.ObserveVerification(result, elapsed)
	}
	return identity, err
}
