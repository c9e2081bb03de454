package config

import "time"

// 認証ゲートが使うVerifierの種類。
const (
	// VerifierFirebase はFirebase IDトークンを公開鍵で直接検証する。
	VerifierFirebase = "firebase"
	// VerifierRemote は外部の検証サービスにHTTPで問い合わせる。
	VerifierRemote = "remote"
)

// Config はゲートウェイ全体の設定。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
	// ReadHeaderTimeout はリクエストヘッダーの読み取り期限。
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig は転送先サービスの設定。
type UpstreamConfig struct {
	// MSUserURL はms-userサービスのベースURL。
	MSUserURL string `yaml:"ms_user_url"`
	// Timeout は転送1回あたりの期限。
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig は認証ゲートの設定。
type AuthConfig struct {
	// Verifier は使用するVerifierの種類（firebase または remote）。
	Verifier string `yaml:"verifier"`
	// VerifyTimeout は検証1回あたりの期限。0の場合は期限なし。
	VerifyTimeout time.Duration `yaml:"verify_timeout"`
	// ExemptPaths は認証不要のパス。完全一致で比較する。
	ExemptPaths []string `yaml:"exempt_paths"`
	// Firebase はFirebase Verifierの設定。
	Firebase FirebaseConfig `yaml:"firebase"`
	// Remote はリモートVerifierの設定。
	Remote RemoteConfig `yaml:"remote"`
	// Breaker はVerifierのサーキットブレーカーの設定。
	Breaker BreakerConfig `yaml:"breaker"`
}

// FirebaseConfig はFirebase IDトークン検証の設定。
type FirebaseConfig struct {
	ProjectID       string        `yaml:"project_id"`
	JWKSURL         string        `yaml:"jwks_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Leeway          time.Duration `yaml:"leeway"`
}

// RemoteConfig は外部検証サービスの設定。
type RemoteConfig struct {
	URL  string `yaml:"url"`
	Path string `yaml:"path"`
}

// BreakerConfig はサーキットブレーカーの設定。
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Level はdebug, info, warn, errorのいずれか。
	Level string `yaml:"level"`
	// Format はjsonまたはconsole。
	Format string `yaml:"format"`
}

// AuditConfig は監査ストアの設定。
type AuditConfig struct {
	// DSN はSQLiteのDSN。空の場合は監査ログを記録しない。
	DSN string `yaml:"dsn"`
}

// TelemetryConfig はメトリクスとトレースの設定。
type TelemetryConfig struct {
	// ServiceName はトレースに付与するサービス名。
	ServiceName string `yaml:"service_name"`
	// OTLPEndpoint はOTLP/gRPCの送信先。空の場合はトレースを送信しない。
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// OTLPInsecure はTLSを使わずに送信するかどうか。
	OTLPInsecure bool `yaml:"otlp_insecure"`
	// SampleRatio はトレースのサンプリング率（0から1）。
	SampleRatio float64 `yaml:"sample_ratio"`
}

// CORSConfig はCORSの設定。
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Defaults は組み込みのデフォルト設定を返す。
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Upstream: UpstreamConfig{
			MSUserURL: "http://localhost:8000",
			Timeout:   30 * time.Second,
		},
		Auth: AuthConfig{
			Verifier:      VerifierFirebase,
			VerifyTimeout: 5 * time.Second,
			ExemptPaths: []string{
				"/ms-user/auth/signup/",
				"/ms-user/auth/signin/",
			},
			Firebase: FirebaseConfig{
				RefreshInterval: 15 * time.Minute,
			},
			Remote: RemoteConfig{
				Path: "/verify",
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "authgate",
			SampleRatio: 1,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}
