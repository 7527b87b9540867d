package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingEnv is returned by Load when a required variable is unset.
var ErrMissingEnv = errors.New("missing env")

const (
	ResetStorePostgres = "postgres"
	ResetStoreRedis    = "redis"
)

type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTIssuer       string
	AllowOrigins    []string
	LogstashTCPAddr string
	FrontendBaseURL string

	SessionTTL         time.Duration
	PasswordResetTTL   time.Duration
	PasswordResetStore string
	RedisURL           string
	StoreTimeout       time.Duration
	TokenSweepInterval time.Duration

	PasswordMinLength    int
	PasswordRequireMixed bool

	DBMaxOpenConns int
	DBMaxIdleConns int

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// SMTPConfigured reports whether enough SMTP settings exist to send mail.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPFrom != ""
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	return fromEnv()
}

// DatabaseURL loads only DATABASE_URL, for commands that need nothing else.
func DatabaseURL() (string, error) {
	_ = godotenv.Load()
	v := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v == "" {
		return "", fmt.Errorf("%w: DATABASE_URL", ErrMissingEnv)
	}
	return v, nil
}

func fromEnv() (Config, error) {
	var missing []string
	must := func(k string) string {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			missing = append(missing, k)
		}
		return v
	}

	cfg := Config{
		Port:                 getenv("PORT", "8080"),
		DatabaseURL:          must("DATABASE_URL"),
		JWTSecret:            must("JWT_SECRET"),
		JWTIssuer:            getenv("JWT_ISSUER", "ems-auth"),
		AllowOrigins:         splitAndTrim(getenv("ALLOW_ORIGINS", "*")),
		LogstashTCPAddr:      getenv("LOGSTASH_TCP_ADDR", ""),
		FrontendBaseURL:      getenv("FRONTEND_BASE_URL", "http://localhost:3000"),
		PasswordResetStore:   strings.ToLower(getenv("PASSWORD_RESET_STORE", ResetStorePostgres)),
		RedisURL:             getenv("REDIS_URL", ""),
		PasswordRequireMixed: getenv("PASSWORD_REQUIRE_MIXED", "false") == "true",
		SMTPHost:             getenv("SMTP_HOST", ""),
		SMTPPort:             getenv("SMTP_PORT", ""),
		SMTPUsername:         getenv("SMTP_USERNAME", ""),
		SMTPPassword:         getenv("SMTP_PASSWORD", ""),
		SMTPFrom:             getenv("SMTP_FROM", ""),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	var err error
	if cfg.SessionTTL, err = duration("SESSION_TTL", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.PasswordResetTTL, err = duration("PASSWORD_RESET_TTL", "1h"); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = duration("STORE_TIMEOUT", "3s"); err != nil {
		return Config{}, err
	}
	if cfg.TokenSweepInterval, err = duration("TOKEN_SWEEP_INTERVAL", "15m"); err != nil {
		return Config{}, err
	}
	if cfg.PasswordMinLength, err = positiveInt("PASSWORD_MIN_LENGTH", "8"); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = positiveInt("DB_MAX_OPEN_CONNS", "20"); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = positiveInt("DB_MAX_IDLE_CONNS", "5"); err != nil {
		return Config{}, err
	}

	switch cfg.PasswordResetStore {
	case ResetStorePostgres:
	case ResetStoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("%w: REDIS_URL (required when PASSWORD_RESET_STORE=redis)", ErrMissingEnv)
		}
	default:
		return Config{}, fmt.Errorf("PASSWORD_RESET_STORE: unsupported value %q", cfg.PasswordResetStore)
	}

	return cfg, nil
}

func duration(k, d string) (time.Duration, error) {
	v, err := time.ParseDuration(getenv(k, d))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return v, nil
}

func positiveInt(k, d string) (int, error) {
	v, err := strconv.Atoi(getenv(k, d))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return v, nil
}

func splitAndTrim(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
