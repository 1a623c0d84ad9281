package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort    string
	ApiEnabled string

	PaystackSecretKey string
	PaystackBaseURL   string
	GatewayTimeout    time.Duration

	MailgunAPIKey string
	MailgunDomain string
	MailFrom      string

	WorkerConcurrency   int
	MaxDeliver          int
	RecordFailedCharges bool
}

// New loads and validates configuration from environment variables.
// The HTTP API is optional: if STOCKPAY_API_ENABLED != "true", ApiAddr()
// returns an error and the HTTP server simply won't start. The mailer is
// optional too; with no Mailgun key the notifier degrades to logging.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:  os.Getenv("STOCKPAY_POSTGRES_USER"),
		DBPass:  os.Getenv("STOCKPAY_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("STOCKPAY_POSTGRES_HOST"),
		DBPort:  os.Getenv("STOCKPAY_POSTGRES_PORT"),
		DBName:  os.Getenv("STOCKPAY_POSTGRES_DB"),
		SSLMode: os.Getenv("STOCKPAY_POSTGRES_SSLMODE"),

		RedisHost: os.Getenv("STOCKPAY_REDIS_HOST"),
		RedisPort: os.Getenv("STOCKPAY_REDIS_PORT"),

		NatsHost: os.Getenv("STOCKPAY_NATS_HOST"),
		NatsPort: os.Getenv("STOCKPAY_NATS_PORT"),

		ApiPort:    os.Getenv("STOCKPAY_API_PORT"),
		ApiEnabled: os.Getenv("STOCKPAY_API_ENABLED"),

		PaystackSecretKey: os.Getenv("STOCKPAY_PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnvDefault("STOCKPAY_PAYSTACK_BASE_URL", "https://api.paystack.co"),
		GatewayTimeout:    time.Duration(getEnvInt("STOCKPAY_GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,

		MailgunAPIKey: os.Getenv("STOCKPAY_MAILGUN_API_KEY"),
		MailgunDomain: os.Getenv("STOCKPAY_MAILGUN_DOMAIN"),
		MailFrom:      os.Getenv("STOCKPAY_MAIL_FROM"),

		WorkerConcurrency:   getEnvInt("STOCKPAY_WORKER_CONCURRENCY", 10),
		MaxDeliver:          getEnvInt("STOCKPAY_MAX_DELIVER", 5),
		RecordFailedCharges: os.Getenv("STOCKPAY_RECORD_FAILED_CHARGES") == "true",
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: STOCKPAY_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: STOCKPAY_REDIS_HOST/PORT")
	}

	// Required: nats (the reconciliation queue lives there)
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: STOCKPAY_NATS_HOST/PORT")
	}

	// Required: processor credentials
	if cfg.PaystackSecretKey == "" {
		return nil, fmt.Errorf("missing required env: STOCKPAY_PAYSTACK_SECRET_KEY")
	}

	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("invalid STOCKPAY_WORKER_CONCURRENCY %d, must be >= 1", cfg.WorkerConcurrency)
	}
	if cfg.MaxDeliver < 1 {
		return nil, fmt.Errorf("invalid STOCKPAY_MAX_DELIVER %d, must be >= 1", cfg.MaxDeliver)
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsURL() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if STOCKPAY_API_ENABLED != "true" — callers should skip
// starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("STOCKPAY_API_PORT is required when STOCKPAY_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (STOCKPAY_API_ENABLED != true)")
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}
