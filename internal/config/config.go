package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Mail     MailConfig
	SLA      SLAConfig
	Blob     BlobConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters. Admin access is granted by
// allowlist membership plus the shared passphrase, or by an identity-provider
// claim; both run behind the same resolver interface.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AdminEmails           []string
	AdminPassphraseHash   string
	AdminDirectory        map[string]string
	IdPSecret             string
}

// MailConfig points at the fire-and-forget mail relay.
type MailConfig struct {
	RelayURL       string
	Subject        string
	Operators      []string
	AppLink        string
	TimeoutSeconds int
}

// SLAConfig selects the elapsed-time formatting policy.
type SLAConfig struct {
	Format string
}

// BlobConfig locates the attachment bucket.
type BlobConfig struct {
	BucketURL     string
	PublicBaseURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "findesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AdminEmails:           getEnvAsList("AUTH_ADMIN_EMAILS"),
			AdminPassphraseHash:   os.Getenv("AUTH_ADMIN_PASSPHRASE_HASH"),
			AdminDirectory:        getEnvAsPairs("AUTH_ADMIN_DIRECTORY"),
			IdPSecret:             os.Getenv("AUTH_IDP_SECRET"),
		},
		Mail: MailConfig{
			RelayURL:       os.Getenv("MAIL_RELAY_URL"),
			Subject:        getEnv("MAIL_SUBJECT", "FinDesk: ticket update"),
			Operators:      getEnvAsList("MAIL_OPERATOR_ADDRESSES"),
			AppLink:        getEnv("MAIL_APP_LINK", "https://findesk.example.com/"),
			TimeoutSeconds: getEnvAsInt("MAIL_TIMEOUT_SECONDS", 10),
		},
		SLA: SLAConfig{
			Format: getEnv("SLA_FORMAT", "coarse"),
		},
		Blob: BlobConfig{
			BucketURL:     getEnv("BLOB_BUCKET_URL", "file:///var/findesk/attachments"),
			PublicBaseURL: getEnv("BLOB_PUBLIC_BASE_URL", "https://findesk.example.com/attachments"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the mail relay call timeout.
func (m MailConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvAsPairs parses "key=value;key=value" mappings.
func getEnvAsPairs(key string) map[string]string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(val, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}
