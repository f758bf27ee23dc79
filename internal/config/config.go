package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AI       AIConfig       `mapstructure:"ai"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Staging  StagingConfig  `mapstructure:"staging"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	CookieDomain   string `mapstructure:"cookie_domain"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig selects the SQL backend. SQLite is the default; PostgreSQL is
// used when Driver is "postgres".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains the Redis connection settings.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig selects where staged uploads live.
type StorageConfig struct {
	Driver    string `mapstructure:"driver"`
	UploadDir string `mapstructure:"upload_dir"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig controls session tokens and login throttling.
type AuthConfig struct {
	PrivateKeyPath        string        `mapstructure:"private_key_path"`
	PublicKeyPath         string        `mapstructure:"public_key_path"`
	SessionTTL            time.Duration `mapstructure:"session_ttl"`
	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
}

// AIConfig configures the generative-AI client. An empty APIKey disables it.
type AIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxPromptChars int           `mapstructure:"max_prompt_chars"`
	StrictCalendar bool          `mapstructure:"strict_calendar"`
}

// ClamdConfig points at a clamd daemon. An empty address disables scanning.
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// StagingConfig controls how long a staged upload may wait before it is reaped.
type StagingConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// PDFConfig toggles headless-browser PDF export.
type PDFConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WorkerConfig tunes the background worker. A zero MetricsPort disables its
// metrics listener.
type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	MetricsPort   int           `mapstructure:"metrics_port"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cookie_domain", "")
	v.SetDefault("api.max_upload_bytes", 16<<20)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "syllabus.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "syllabus")
	v.SetDefault("database.user", "syllabus")
	v.SetDefault("database.password", "syllabus")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "syllabi")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_ttl", 15*time.Minute)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.timeout", 2*time.Minute)
	v.SetDefault("ai.max_prompt_chars", 15000)
	v.SetDefault("ai.strict_calendar", false)
	v.SetDefault("clamd.addr", "")
	v.SetDefault("staging.ttl", 30*time.Minute)
	v.SetDefault("pdf.enabled", false)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.metrics_port", 9091)
	v.SetDefault("worker.sweep_interval", 10*time.Minute)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                       "API_PORT",
		"api.cookie_domain":              "COOKIE_DOMAIN",
		"api.max_upload_bytes":           "MAX_UPLOAD_BYTES",
		"database.driver":                "DATABASE_DRIVER",
		"database.path":                  "DATABASE_PATH",
		"database.host":                  "DATABASE_HOST",
		"database.port":                  "DATABASE_PORT",
		"database.name":                  "POSTGRES_DB",
		"database.user":                  "POSTGRES_USER",
		"database.password":              "POSTGRES_PASSWORD",
		"database.sslmode":               "DATABASE_SSLMODE",
		"redis.host":                     "REDIS_HOST",
		"redis.port":                     "REDIS_PORT",
		"storage.driver":                 "STORAGE_DRIVER",
		"storage.upload_dir":             "UPLOAD_DIR",
		"minio.endpoint":                 "MINIO_ENDPOINT",
		"minio.access_key_id":            "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":        "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                  "MINIO_USE_SSL",
		"minio.bucket":                   "MINIO_BUCKET",
		"minio.region":                   "MINIO_REGION",
		"minio.bucket_lookup":            "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":       "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":          "JWT_PRIVATE_KEY_PATH",
		"auth.public_key_path":           "JWT_PUBLIC_KEY_PATH",
		"auth.session_ttl":               "SESSION_TTL",
		"auth.login_rate_limit_per_hour": "LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":      "LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_ttl":            "LOGIN_LOCK_TTL",
		"ai.api_key":                     "GEMINI_API_KEY",
		"ai.model":                       "GEMINI_MODEL",
		"ai.base_url":                    "GEMINI_BASE_URL",
		"ai.timeout":                     "GEMINI_TIMEOUT",
		"ai.max_prompt_chars":            "AI_MAX_PROMPT_CHARS",
		"ai.strict_calendar":             "AI_STRICT_CALENDAR",
		"clamd.addr":                     "CLAMD_ADDR",
		"staging.ttl":                    "STAGING_TTL",
		"pdf.enabled":                    "PDF_EXPORT_ENABLED",
		"worker.concurrency":             "WORKER_CONCURRENCY",
		"worker.metrics_port":            "WORKER_METRICS_PORT",
		"worker.sweep_interval":          "WORKER_SWEEP_INTERVAL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.API.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	case "postgres":
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.Port <= 0 {
			return errors.New("database port must be positive")
		}
		if cfg.Database.Name == "" {
			return errors.New("database name is required")
		}
		if cfg.Database.User == "" {
			return errors.New("database user is required")
		}
		if cfg.Database.Password == "" {
			return errors.New("database password is required")
		}
		if cfg.Database.SSLMode == "" {
			return errors.New("database sslmode is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}

	switch cfg.Storage.Driver {
	case "local":
		if cfg.Storage.UploadDir == "" {
			return errors.New("upload dir is required")
		}
	case "minio":
		if cfg.MinIO.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Auth.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if (cfg.Auth.PrivateKeyPath == "") != (cfg.Auth.PublicKeyPath == "") {
		return errors.New("jwt private and public key paths must be set together")
	}
	if cfg.AI.Model == "" {
		return errors.New("ai model is required")
	}
	if cfg.AI.MaxPromptChars <= 0 {
		return errors.New("ai max prompt chars must be positive")
	}
	if cfg.Staging.TTL <= 0 {
		return errors.New("staging ttl must be positive")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	if cfg.Worker.SweepInterval <= 0 {
		return errors.New("worker sweep interval must be positive")
	}
	return nil
}
