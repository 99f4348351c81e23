package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML with env overrides.
type FileConfig struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	PublicBaseURL string `yaml:"publicBaseURL"`

	// DatabaseDSN empty selects the in-memory store (local development).
	DatabaseDSN   string `yaml:"databaseDSN"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret       string `yaml:"jwtSecret"`
	AccessTokenTTL  string `yaml:"accessTokenTTL"`
	RefreshTokenTTL string `yaml:"refreshTokenTTL"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	WhatsAppAccessToken   string `yaml:"whatsappAccessToken"`
	WhatsAppPhoneNumberID string `yaml:"whatsappPhoneNumberID"`

	AIBaseURL string `yaml:"aiBaseURL"`
	AIAPIKey  string `yaml:"aiApiKey"`
	AIModel   string `yaml:"aiModel"`

	QueueStream      string `yaml:"queueStream"`
	QueueConcurrency int    `yaml:"queueConcurrency"`

	CacheTTLSeconds int `yaml:"cacheTTLSeconds"`

	LoginRateLimitPerMinute int   `yaml:"loginRateLimitPerMinute"`
	WriteRateLimitPerMinute int   `yaml:"writeRateLimitPerMinute"`
	MaxUploadBytes          int64 `yaml:"maxUploadBytes"`
}

// Load reads config from path (defaults to config.yaml). A .env file, when
// present, is loaded first so the env overrides below can pick it up.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	overrideString(&cfg.Port, "AUTOEDEN_PORT")
	overrideString(&cfg.LogLevel, "AUTOEDEN_LOG_LEVEL")
	overrideString(&cfg.PublicBaseURL, "AUTOEDEN_PUBLIC_BASE_URL")
	overrideString(&cfg.DatabaseDSN, "DATABASE_DSN")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.AccessTokenTTL, "ACCESS_TOKEN_TTL")
	overrideString(&cfg.RefreshTokenTTL, "REFRESH_TOKEN_TTL")
	overrideString(&cfg.SMTPHost, "SMTP_HOST")
	overrideInt(&cfg.SMTPPort, "SMTP_PORT")
	overrideString(&cfg.SMTPUsername, "SMTP_USERNAME")
	overrideString(&cfg.SMTPPassword, "SMTP_PASSWORD")
	overrideString(&cfg.SMTPFrom, "SMTP_FROM")
	overrideString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	overrideString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	overrideString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	overrideString(&cfg.MinioBucket, "MINIO_BUCKET")
	overrideBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")
	overrideString(&cfg.WhatsAppAccessToken, "WHATSAPP_ACCESS_TOKEN")
	overrideString(&cfg.WhatsAppPhoneNumberID, "WHATSAPP_PHONE_NUMBER_ID")
	overrideString(&cfg.AIBaseURL, "AI_BASE_URL")
	overrideString(&cfg.AIAPIKey, "AI_API_KEY")
	overrideString(&cfg.AIModel, "AI_MODEL")
	overrideString(&cfg.QueueStream, "AUTOEDEN_QUEUE_STREAM")
	overrideInt(&cfg.QueueConcurrency, "AUTOEDEN_QUEUE_CONCURRENCY")
	overrideInt(&cfg.CacheTTLSeconds, "AUTOEDEN_CACHE_TTL_SECONDS")
	overrideInt(&cfg.LoginRateLimitPerMinute, "AUTOEDEN_LOGIN_RATE_LIMIT_PER_MINUTE")
	overrideInt(&cfg.WriteRateLimitPerMinute, "AUTOEDEN_WRITE_RATE_LIMIT_PER_MINUTE")
	overrideInt64(&cfg.MaxUploadBytes, "AUTOEDEN_MAX_UPLOAD_BYTES")

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for cache, sessions and the task queue")
	}
	if cfg.QueueStream == "" {
		return errors.New("config: queueStream is required (set in config.yaml)")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.WriteRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.CacheTTLSeconds < 0 {
		return errors.New("config: cacheTTLSeconds must be >= 0")
	}
	if _, err := ParseTTL(cfg.AccessTokenTTL, 15*time.Minute); err != nil {
		return fmt.Errorf("config: accessTokenTTL: %w", err)
	}
	if _, err := ParseTTL(cfg.RefreshTokenTTL, 30*24*time.Hour); err != nil {
		return fmt.Errorf("config: refreshTokenTTL: %w", err)
	}
	return nil
}

// ParseTTL parses an optional duration string, returning the fallback when
// the string is empty.
func ParseTTL(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return dur, nil
}

func overrideString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func overrideInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func overrideInt64(dst *int64, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*dst = n
		}
	}
}

func overrideBool(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
