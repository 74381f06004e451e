package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string   `env:"PORT" envDefault:"8080"`
	Env             string   `env:"ENV" envDefault:"dev"`
	LogLevel        string   `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	TrustedProxies  []string `env:"TRUSTED_PROXIES" envSeparator:"," validate:"dive,cidr|ip"`

	UploadsPath    string `env:"UPLOADS_PATH" envDefault:"./uploads" validate:"required"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880" validate:"gt=0"`
	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"local" validate:"oneof=local s3"`

	S3Bucket         string `env:"S3_BUCKET" validate:"required_if=StorageDriver s3"`
	S3Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Prefix         string `env:"S3_PREFIX" envDefault:"uploads"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	S3KMSKeyID       string `env:"S3_KMS_KEY_ID"`
	S3SSE            string `env:"S3_SSE" envDefault:"AES256"`

	EventsQueueURL string `env:"FILE_EVENTS_QUEUE_URL"`
	EventsRegion   string `env:"FILE_EVENTS_REGION" envDefault:"us-east-1"`

	DatabaseURL     string        `env:"DATABASE_URL"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	DBConnIdleTime  time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"2m"`
	DBPingTimeout   time.Duration `env:"DB_PING_TIMEOUT" envDefault:"5s"`
	RedisURL        string        `env:"REDIS_URL"`
	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionMaxAge   time.Duration `env:"SESSION_MAX_AGE" envDefault:"12h"`
	AdminUsername   string        `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword   string        `env:"ADMIN_PASSWORD"`
	UploadRateRPS   float64       `env:"RATE_LIMIT_UPLOAD_RPS" envDefault:"2"`
	UploadRateBurst int           `env:"RATE_LIMIT_UPLOAD_BURST" envDefault:"20"`
	AuthRateRPS     float64       `env:"RATE_LIMIT_AUTH_RPS" envDefault:"0.2"`
	AuthRateBurst   int           `env:"RATE_LIMIT_AUTH_BURST" envDefault:"5"`
}

const devSessionSecret = "dev-session-secret-change-me"

// Load reads configuration from the environment, after a best-effort load of
// local .env files for dev convenience.
func Load() (Config, error) {
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.StorageDriver = normalizeStorageDriver(cfg.StorageDriver)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.SessionSecret == "" && cfg.IsDevLike() {
		cfg.SessionSecret = devSessionSecret
	}
	return cfg, nil
}

// Validate checks field constraints and the requirements of shared
// environments.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.IsDevLike() && strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("invalid config: SESSION_SECRET is required in %s", c.Env)
	}
	if c.Env == "production" {
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("invalid config: DATABASE_URL is required in production")
		}
	}
	return nil
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		// Missing files are expected outside local development.
		_ = godotenv.Load(path)
	}
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStorageDriver(raw string) string {
	driver := strings.ToLower(strings.TrimSpace(raw))
	if driver == "" {
		return "local"
	}
	return driver
}
