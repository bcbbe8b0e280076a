package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelSamplingRatio    float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Stripe StripeConfig
	Email  EmailConfig

	CheckoutTokenSecret string
	CheckoutTokenTTL    int // seconds
	ProductPriceCents   int64
	ProductName         string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	Cart CartConfig

	RateLimit RateLimitConfig
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	APIBaseURL    string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type CartConfig struct {
	ReminderDelayMinutes int
	MaxReminders         int
	SweepIntervalMinutes int
	SweepBatchSize       int
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PublicRate    float64
	PublicBurst   int
	LockTTLSecs   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "pagescope"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 1.0),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pagescope"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Stripe: StripeConfig{
			APIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			APIBaseURL:    getenv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "hello@pagescope.dev"),
		},

		CheckoutTokenSecret: strings.TrimSpace(getenv("CHECKOUT_TOKEN_SECRET", "dev-only-checkout-secret")),
		CheckoutTokenTTL:    getenvInt("CHECKOUT_TOKEN_TTL", 72*3600),
		ProductPriceCents:   getenvInt64("PRODUCT_PRICE_CENTS", 299_00),
		ProductName:         getenv("PRODUCT_NAME", "PageScope Site Audit"),
		CheckoutSuccessURL:  getenv("CHECKOUT_SUCCESS_URL", "https://pagescope.dev/thanks"),
		CheckoutCancelURL:   getenv("CHECKOUT_CANCEL_URL", "https://pagescope.dev/pricing"),

		Cart: CartConfig{
			ReminderDelayMinutes: getenvInt("CART_REMINDER_DELAY_MINUTES", 180),
			MaxReminders:         getenvInt("CART_MAX_REMINDERS", 2),
			SweepIntervalMinutes: getenvInt("CART_SWEEP_INTERVAL_MINUTES", 15),
			SweepBatchSize:       getenvInt("CART_SWEEP_BATCH_SIZE", 100),
		},

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     getenv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			PublicRate:    getenvFloat("RATE_LIMIT_PUBLIC_RATE", 2),
			PublicBurst:   getenvInt("RATE_LIMIT_PUBLIC_BURST", 10),
			LockTTLSecs:   getenvInt("RATE_LIMIT_LOCK_TTL_SECONDS", 300),
		},
	}
}

func (c Config) Debug() bool {
	return c.Environment != "production"
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReferralPolicyHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
