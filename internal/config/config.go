package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080" validate:"required"`
	Environment string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`

	SessionSecret string `env:"SESSION_SECRET,required" validate:"required,min=32"`
	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`
	ReceiptSecret string `env:"RECEIPT_SECRET" validate:"omitempty,min=32"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	SessionStoreProvider  string `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`

	PaymentProvider          string `env:"PAYMENT_PROVIDER" envDefault:"mercadopago" validate:"oneof=mercadopago stripe"`
	MercadoPagoAccessToken   string `env:"MERCADOPAGO_ACCESS_TOKEN"`
	MercadoPagoPublicKey     string `env:"MERCADOPAGO_PUBLIC_KEY"`
	MercadoPagoWebhookSecret string `env:"MERCADOPAGO_WEBHOOK_SECRET"`
	MercadoPagoSandbox       bool   `env:"MERCADOPAGO_SANDBOX" envDefault:"false"`
	MercadoPagoBaseURL       string `env:"MERCADOPAGO_BASE_URL" envDefault:"https://api.mercadopago.com" validate:"url"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	OCAURL              string `env:"OCA_URL" envDefault:"https://webservice.oca.com.ar/epak_tracking/Oep_TrackEPak.asmx" validate:"url"`
	OCAUser             string `env:"OCA_USER"`
	OCAPassword         string `env:"OCA_PASSWORD"`
	OCACUIT             string `env:"OCA_CUIT"`
	OCAClientID         string `env:"OCA_CLIENT_ID"`
	OCAOperativa        string `env:"OCA_OPERATIVA" envDefault:"Puerta a Puerta"`
	OCAOriginPostalCode string `env:"OCA_ORIGIN_POSTAL_CODE" envDefault:"1000"`

	StorageProvider string `env:"STORAGE_PROVIDER" envDefault:"local" validate:"oneof=local s3"`
	UploadDir       string `env:"UPLOAD_DIR" envDefault:"./public/uploads"`
	S3Bucket        string `env:"S3_BUCKET" validate:"required_if=StorageProvider s3"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint      string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3PublicURL     string `env:"S3_PUBLIC_URL" validate:"omitempty,url"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"none" validate:"omitempty,oneof=none resend postmark mailgun"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailDomain   string `env:"EMAIL_DOMAIN"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"development"`

	JobsEnabled          bool          `env:"JOBS_ENABLED" envDefault:"true"`
	TrackingSyncSpec     string        `env:"TRACKING_SYNC_SPEC" envDefault:"@every 30m"`
	PaymentReconcileSpec string        `env:"PAYMENT_RECONCILE_SPEC" envDefault:"@every 15m"`
	PaymentReconcileAge  time.Duration `env:"PAYMENT_RECONCILE_AGE" envDefault:"10m"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.BaseURL = NormalizeSiteURL(cfg.BaseURL)
	if cfg.ReceiptSecret == "" {
		cfg.ReceiptSecret = cfg.SessionSecret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	switch c.PaymentProvider {
	case "mercadopago":
		if strings.TrimSpace(c.MercadoPagoAccessToken) == "" {
			return fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN is required when PAYMENT_PROVIDER is mercadopago")
		}
	case "stripe":
		if strings.TrimSpace(c.StripeSecretKey) == "" || strings.TrimSpace(c.StripeWebhookSecret) == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required when PAYMENT_PROVIDER is stripe")
		}
	}

	if c.EmailProvider != "" && c.EmailProvider != "none" {
		if strings.TrimSpace(c.EmailAPIKey) == "" || strings.TrimSpace(c.EmailFrom) == "" {
			return fmt.Errorf("EMAIL_API_KEY and EMAIL_FROM are required when EMAIL_PROVIDER is %s", c.EmailProvider)
		}
		if c.EmailProvider == "mailgun" && strings.TrimSpace(c.EmailDomain) == "" {
			return fmt.Errorf("EMAIL_DOMAIN is required for mailgun")
		}
	}

	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	return nil
}

// OCAConfigured reports whether real carrier credentials are present.
func (c *Config) OCAConfigured() bool {
	return strings.TrimSpace(c.OCAUser) != "" && strings.TrimSpace(c.OCAPassword) != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NormalizeSiteURL adds a missing scheme and drops the trailing slash.
func NormalizeSiteURL(raw string) string {
	site := strings.TrimSpace(raw)
	if site == "" {
		return ""
	}
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	return strings.TrimRight(site, "/")
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
