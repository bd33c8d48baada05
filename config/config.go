package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the process needs. It is built once in main and
// handed down explicitly; nothing in this package is resolved per-call.
type Config struct {
	Port    int
	GinMode string

	// DatabaseURL is a postgres DSN. When empty the server falls back to a
	// local sqlite file so dev setups need zero infrastructure.
	DatabaseURL string
	SQLitePath  string

	JWTSecret []byte
	TokenTTL  time.Duration

	// Optional AWS cache/blob layer. Disabled unless both keys are set.
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	DynamoTablePrefix  string
	S3Bucket           string

	// Optional Elasticsearch product index.
	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	// Razorpay payment gateway. Payments endpoints answer 503 when unset.
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	// SMTP for password-reset mail.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	FrontendURL string

	// Fixed global per-IP rate limit over /api.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Load reads .env if present, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:    envInt("PORT", 8080),
		GinMode: env("GIN_MODE", ""),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  env("SQLITE_PATH", "grocery_delivery.db"),

		JWTSecret: []byte(env("JWT_SECRET", "grocery_delivery_super_secret_2024")),
		TokenTTL:  time.Duration(envInt("TOKEN_TTL_HOURS", 24)) * time.Hour,

		AWSRegion:          env("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		DynamoTablePrefix:  env("DYNAMODB_TABLE_PREFIX", "grocery-delivery"),
		S3Bucket:           os.Getenv("S3_BUCKET_NAME"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    env("ES_PRODUCT_INDEX", "products"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envInt("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: env("MAIL_FROM", "no-reply@grocerydelivery.local"),

		FrontendURL: env("FRONTEND_URL", "http://localhost:3000"),

		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:     envInt("RATE_LIMIT_BURST", 20),
	}
}

// AWSEnabled reports whether the advisory DynamoDB/S3 layer is configured.
func (c *Config) AWSEnabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
