package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	CORSOrigin string
	AppEnv     string

	DBDriver string
	DBURL    string

	// HS256 secret shared with the auth backend. Ignored when AuthJWKSURL is set.
	JWTSecret   string
	AuthJWKSURL string
	AuthIssuer  string

	PaymentProvider  string
	ReferencePrefix  string
	Currency         string
	PaystackSecret   string
	PaystackBaseURL  string
	StripeSecretKey  string
	StripeWebhookKey string
	AppURL           string

	MailDriver   string
	MailFrom     string
	ResendAPIKey string
	ResendURL    string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string

	HTTPTimeout time.Duration

	OutboxInterval    time.Duration
	OutboxBatch       int
	OutboxMaxAttempts int
	OutboxBaseBackoff time.Duration
	OutboxMaxBackoff  time.Duration
	OutboxRatePerSec  float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		AppEnv:     getEnv("APP_ENV", "development"),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBURL:    mustEnv("DB_URL"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		AuthJWKSURL: getEnv("AUTH_JWKS_URL", ""),
		AuthIssuer:  getEnv("AUTH_ISSUER", ""),

		PaymentProvider:  strings.ToLower(getEnv("PAYMENT_PROVIDER", "paystack")),
		ReferencePrefix:  getEnv("PAYMENT_REFERENCE_PREFIX", "APM"),
		Currency:         strings.ToUpper(getEnv("PAYMENT_CURRENCY", "ZAR")),
		PaystackSecret:   getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:  getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookKey: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		AppURL:           getEnv("APP_URL", "http://localhost:5173"),

		MailDriver:   strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		MailFrom:     getEnv("MAIL_FROM", "invoices@partsmarket.local"),
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		ResendURL:    getEnv("RESEND_URL", "https://api.resend.com/emails"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		HTTPTimeout: getDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second),

		OutboxInterval:    getDuration("OUTBOX_INTERVAL", 5*time.Second),
		OutboxBatch:       getInt("OUTBOX_BATCH", 20),
		OutboxMaxAttempts: getInt("OUTBOX_MAX_ATTEMPTS", 8),
		OutboxBaseBackoff: getDuration("OUTBOX_BASE_BACKOFF", 30*time.Second),
		OutboxMaxBackoff:  getDuration("OUTBOX_MAX_BACKOFF", 1*time.Hour),
		OutboxRatePerSec:  getFloat("OUTBOX_RATE_PER_SEC", 2),
	}

	if cfg.JWTSecret == "" && cfg.AuthJWKSURL == "" {
		log.Fatal("Missing required environment variable: JWT_SECRET or AUTH_JWKS_URL")
	}
	switch cfg.PaymentProvider {
	case "paystack":
		cfg.PaystackSecret = mustEnv("PAYSTACK_SECRET_KEY")
	case "stripe":
		cfg.StripeSecretKey = mustEnv("STRIPE_SECRET_KEY")
		cfg.StripeWebhookKey = mustEnv("STRIPE_WEBHOOK_SECRET")
	default:
		log.Fatalf("Unsupported PAYMENT_PROVIDER: %s", cfg.PaymentProvider)
	}

	return cfg
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
