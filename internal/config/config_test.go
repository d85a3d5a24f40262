package config

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/quicknotes/internal/ratelimit"
)

func validTestConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		BaseURL:         "http://localhost:8080",
		TemplatesDir:    "./web/templates",
		DataDir:         "/tmp/quicknotes-test",
		SessionDuration: time.Hour,
		RateLimitConfig: ratelimit.Config{
			RPS:             10,
			Burst:           20,
			CleanupInterval: time.Hour,
		},
	}
}

func TestValidate_MinimalConfigPasses(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_DatabaseKeyOptional(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.DatabaseKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty DATABASE_KEY should be allowed, got: %v", err)
	}

	cfg.DatabaseKey = strings.Repeat("ab", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("64-hex DATABASE_KEY should be allowed, got: %v", err)
	}
}

func testValidate_RejectsBadDatabaseKeys(t *rapid.T) {
	cfg := validTestConfig()

	cfg.DatabaseKey = rapid.OneOf(
		// Wrong length
		rapid.StringMatching(`[0-9a-f]{1,63}`),
		// Right length, not hex
		rapid.StringMatching(`[g-z]{64}`),
	).Draw(t, "database_key")

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error for DATABASE_KEY %q", cfg.DatabaseKey)
	}
	if !strings.Contains(err.Error(), "DATABASE_KEY") {
		t.Fatalf("expected error to mention DATABASE_KEY, got: %v", err)
	}
}

func TestValidate_RejectsBadDatabaseKeys(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsBadDatabaseKeys)
}

func TestValidate_RejectsBadRateLimits(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.RateLimitConfig.RPS = 0
	cfg.RateLimitConfig.Burst = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for non-positive rate limits")
	}
	msg := err.Error()
	for _, token := range []string{"RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		if !strings.Contains(msg, token) {
			t.Fatalf("expected error mentioning %q, got: %v", token, err)
		}
	}
}

func TestRequireSecureCookies(t *testing.T) {
	t.Parallel()
	cases := []struct {
		baseURL string
		want    bool
	}{
		{"http://localhost:8080", false},
		{"http://127.0.0.1:8080", false},
		{"https://notes.example.com", true},
		{"http://notes.example.com", true},
	}
	for _, c := range cases {
		cfg := validTestConfig()
		cfg.BaseURL = c.baseURL
		if got := cfg.RequireSecureCookies(); got != c.want {
			t.Fatalf("RequireSecureCookies(%q) = %v, want %v", c.baseURL, got, c.want)
		}
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseFloat64OrDefault("CFG_TEST_FLOAT", 2.5); got != 2.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=2.5", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=1m", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"LISTEN_ADDR", "BASE_URL", "TEMPLATES_DIR", "DATA_DIR", "DATABASE_KEY",
		"SESSION_DURATION", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("default ListenAddr mismatch: %q", cfg.ListenAddr)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("default BaseURL mismatch: %q", cfg.BaseURL)
	}
	if cfg.SessionDuration != 30*24*time.Hour {
		t.Fatalf("default SessionDuration mismatch: %v", cfg.SessionDuration)
	}
	if cfg.RateLimitConfig.RPS != 10 || cfg.RateLimitConfig.Burst != 20 {
		t.Fatalf("default rate limits mismatch: %+v", cfg.RateLimitConfig)
	}
}

func TestLoadConfig_AddrFlagOverridesEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("BASE_URL", "")
	t.Setenv("DATABASE_KEY", "")

	cfg, err := LoadConfig(":7777")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Fatalf("addr flag should override env, got %q", cfg.ListenAddr)
	}
}
