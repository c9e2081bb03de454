package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Validate は設定の必須項目と値の範囲を検証する。
// すべての違反をまとめて返す。
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port は1から65535の数値である必要があります: %q", c.Server.Port))
	}

	if err := validateURL(c.Upstream.MSUserURL); err != nil {
		errs = append(errs, fmt.Errorf("upstream.ms_user_url: %w", err))
	}

	switch c.Auth.Verifier {
	case VerifierFirebase:
		if c.Auth.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("auth.verifier が firebase の場合 auth.firebase.project_id は必須です"))
		}
	case VerifierRemote:
		if err := validateURL(c.Auth.Remote.URL); err != nil {
			errs = append(errs, fmt.Errorf("auth.remote.url: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.verifier は %q または %q である必要があります: %q", VerifierFirebase, VerifierRemote, c.Auth.Verifier))
	}

	if c.Auth.VerifyTimeout < 0 {
		errs = append(errs, fmt.Errorf("auth.verify_timeout は0以上である必要があります: %s", c.Auth.VerifyTimeout))
	}
	for _, p := range c.Auth.ExemptPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("auth.exempt_paths は/で始まる必要があります: %q", p))
		}
	}
	if c.Auth.Breaker.Enabled && c.Auth.Breaker.FailureThreshold == 0 {
		errs = append(errs, errors.New("auth.breaker.failure_threshold は1以上である必要があります"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level が不正です: %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format は json または console である必要があります: %q", c.Log.Format))
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio は0から1の範囲である必要があります: %v", c.Telemetry.SampleRatio))
	}

	return errors.Join(errs...)
}

// validateURL はhttpまたはhttpsの絶対URLかを検証する。
func validateURL(raw string) error {
	if raw == "" {
		return errors.New("必須です")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("httpまたはhttpsの絶対URLである必要があります: %q", raw)
	}
	return nil
}
