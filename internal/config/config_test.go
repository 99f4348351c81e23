package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
port: "8080"
jwtSecret: "test-secret"
redisAddr: "localhost:6379"
queueStream: "autoeden:tasks"
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.JWTSecret != "test-secret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	_, err := Load(writeConfig(t, `
port: "8080"
redisAddr: "localhost:6379"
queueStream: "autoeden:tasks"
`))
	if err == nil {
		t.Fatal("expected error without jwtSecret")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("AUTOEDEN_LOGIN_RATE_LIMIT_PER_MINUTE", "7")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.LoginRateLimitPerMinute != 7 {
		t.Fatalf("LoginRateLimitPerMinute = %d", cfg.LoginRateLimitPerMinute)
	}
}

func TestParseTTL(t *testing.T) {
	if d, err := ParseTTL("", time.Hour); err != nil || d != time.Hour {
		t.Fatalf("empty TTL: d=%v err=%v", d, err)
	}
	if d, err := ParseTTL("45m", time.Hour); err != nil || d != 45*time.Minute {
		t.Fatalf("45m TTL: d=%v err=%v", d, err)
	}
	if _, err := ParseTTL("nonsense", time.Hour); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if _, err := ParseTTL("-5m", time.Hour); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadRejectsInvalidTTL(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`accessTokenTTL: "bogus"`))
	if err == nil {
		t.Fatal("expected error for invalid accessTokenTTL")
	}
}
