package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	postgres "github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/postgres"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Restate     RestateConfig
	Kafka       KafkaConfig
	Database    postgres.DatabaseConfig
	Payment     PaymentConfig
	Backend     BackendConfig
	Store       StoreConfig
	Support     SupportConfig
	Email       EmailConfig
	Telemetry   TelemetryConfig
}

type HTTPConfig struct {
	Addr string
}

type RestateConfig struct {
	ListenAddr string
	RuntimeURL string
}

type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	ReservationsTopic string
	EmailGroup        string
}

type PaymentConfig struct {
	ProviderURL     string
	ProviderDomains []string
	VerifyURL       string
	VerifyTimeout   time.Duration
	Strict          bool
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Store kinds.
const (
	StoreCookie   = "cookie"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreRestate  = "restate"
)

type StoreConfig struct {
	Backend        string
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	TTL            time.Duration
	CookieHashKey  string
	CookieBlockKey string
	CookieSecure   bool
}

type SupportConfig struct {
	Email string
	// RatePerMinute bounds support escalations accepted per client.
	RatePerMinute int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUser     string
	SMTPPassword string
	UseLogSender bool
}

type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "item-reservation-checkout"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Restate: RestateConfig{
			ListenAddr: getEnv("RESTATE_LISTEN_ADDR", ":9081"),
			RuntimeURL: getEnv("RESTATE_RUNTIME_URL", "http://127.0.0.1:8080"),
		},
		Kafka: KafkaConfig{
			Brokers:           splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			ReservationsTopic: getEnv("KAFKA_RESERVATIONS_TOPIC", "reservations.v1"),
			EmailGroup:        getEnv("KAFKA_EMAIL_GROUP_ID", "email-workers"),
		},
		Payment: PaymentConfig{
			ProviderURL:     getEnv("PAYMENT_PROVIDER_URL", "https://buy.stripe.com/test_reservation"),
			ProviderDomains: splitAndTrim(getEnv("PAYMENT_PROVIDER_DOMAINS", "stripe.com")),
			VerifyURL:       getEnv("PAYMENT_VERIFY_URL", "http://localhost:4000"),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("RESERVATION_BACKEND_URL", "http://localhost:4000"),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("INTENT_STORE", StoreCookie)),
			SQLitePath:     getEnv("INTENT_SQLITE_PATH", "reservations.db"),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			CookieHashKey:  getEnv("COOKIE_HASH_KEY", ""),
			CookieBlockKey: getEnv("COOKIE_BLOCK_KEY", ""),
		},
		Support: SupportConfig{
			Email: getEnv("SUPPORT_EMAIL", "support@example.local"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnv("SMTP_PORT", "1025"),
			SMTPFrom:     getEnv("SMTP_FROM", "no-reply@example.local"),
			SMTPUser:     getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		},
		Telemetry: TelemetryConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://localhost:4318/v1/traces"),
		},
	}

	var err error
	if cfg.Kafka.Enabled, err = getBool("KAFKA_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.Payment.VerifyTimeout, err = getDuration("PAYMENT_VERIFY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Payment.Strict, err = getBool("PAYMENT_STRICT_VERIFICATION", false); err != nil {
		return Config{}, err
	}
	if cfg.Backend.Timeout, err = getDuration("RESERVATION_BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Store.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.Store.TTL, err = getDuration("INTENT_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Store.CookieSecure, err = getBool("COOKIE_SECURE", false); err != nil {
		return Config{}, err
	}
	if cfg.Support.RatePerMinute, err = getInt("SUPPORT_RATE_PER_MINUTE", 3); err != nil {
		return Config{}, err
	}
	if cfg.Email.UseLogSender, err = getBool("EMAIL_LOG_ONLY", false); err != nil {
		return Config{}, err
	}
	if cfg.Telemetry.Enabled, err = getBool("OTEL_ENABLED", true); err != nil {
		return Config{}, err
	}

	port, err := getInt("ORDER_DB_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cfg.Database = postgres.DatabaseConfig{
		Host:     getEnv("ORDER_DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("ORDER_DB_NAME", "reservations"),
		User:     getEnv("ORDER_DB_USER", "reservationsadmin"),
		Password: getEnv("ORDER_DB_PASSWORD", ""),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
	}

	switch cfg.Store.Backend {
	case StoreCookie, StoreSQLite, StorePostgres, StoreRedis, StoreRestate:
	default:
		return Config{}, fmt.Errorf("unknown INTENT_STORE %q", cfg.Store.Backend)
	}
	if cfg.Support.RatePerMinute <= 0 {
		return Config{}, fmt.Errorf("SUPPORT_RATE_PER_MINUTE must be positive, got %d", cfg.Support.RatePerMinute)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
