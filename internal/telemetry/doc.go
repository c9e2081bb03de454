// Package telemetry は認証ゲートのPrometheusメトリクスとOpenTelemetryのトレーサープロバイダーを提供する。
package telemetry
