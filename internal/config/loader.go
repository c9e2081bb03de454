package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath は設定ファイルのパスを指定する環境変数。
const EnvConfigPath = "AUTHGATE_CONFIG"

// Load はデフォルト値、YAMLファイル、環境変数の順に設定を読み込み、検証する。
// configPathが空の場合はAUTHGATE_CONFIG環境変数のパスを使う。どちらも無ければファイルは読まない。
func Load(configPath string) (*Config, error) {
	return load(configPath, os.LookupEnv)
}

// lookupFunc は環境変数を取得する関数。テストで差し替える。
type lookupFunc func(key string) (string, bool)

func load(configPath string, lookup lookupFunc) (*Config, error) {
	cfg := Defaults()

	if configPath == "" {
		configPath, _ = lookup(EnvConfigPath)
	}
	if configPath != "" {
		if err := loadYAMLFile(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", configPath, err)
		}
	}

	if err := applyEnvOverrides(&cfg, lookup); err != nil {
		return nil, fmt.Errorf("環境変数の適用に失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return &cfg, nil
}

// loadYAMLFile はYAMLファイルをcfgに読み込む。ファイルに無い項目は現在の値を保つ。
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides は環境変数で設定を上書きする。
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := get("MS_USER_URL"); ok {
		cfg.Upstream.MSUserURL = v
	}
	if v, ok := get("FIREBASE_PROJECT_ID"); ok {
		cfg.Auth.Firebase.ProjectID = v
	}
	if v, ok := get("AUTHGATE_VERIFIER"); ok {
		cfg.Auth.Verifier = strings.ToLower(v)
	}
	if v, ok := get("AUTHGATE_REMOTE_VERIFIER_URL"); ok {
		cfg.Auth.Remote.URL = v
	}
	if v, ok := get("AUTHGATE_EXEMPT_PATHS"); ok {
		cfg.Auth.ExemptPaths = splitList(v)
	}
	if v, ok := get("AUTHGATE_LOG_LEVEL"); ok {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := get("AUTHGATE_LOG_FORMAT"); ok {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v, ok := get("AUTHGATE_AUDIT_DSN"); ok {
		cfg.Audit.DSN = v
	}
	if v, ok := get("AUTHGATE_OTLP_ENDPOINT"); ok {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v, ok := get("FRONTEND_URL"); ok {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	var errs []error
	if v, ok := get("AUTHGATE_VERIFY_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTHGATE_VERIFY_TIMEOUT: %w", err))
		} else {
			cfg.Auth.VerifyTimeout = d
		}
	}
	if v, ok := get("AUTHGATE_BREAKER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTHGATE_BREAKER_ENABLED: %w", err))
		} else {
			cfg.Auth.Breaker.Enabled = b
		}
	}
	return errors.Join(errs...)
}

// splitList はカンマ区切りの文字列を分割し、空要素を除いて返す。
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
