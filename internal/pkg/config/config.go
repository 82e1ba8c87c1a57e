package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const envDevelopment = "development"

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	SessionTTL      time.Duration `env:"SESSION_TTL,      default=168h"`
	CookieSecure    bool          `env:"COOKIE_SECURE,    default=false"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL, default=1h"`

	OTP      OTPConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Mail     MailConfig
	EmailJS  EmailJSConfig
	Branding BrandingConfig
}

type OTPConfig struct {
	TTL         time.Duration `env:"OTP_TTL,          default=10m"`
	IssueLimit  int           `env:"OTP_ISSUE_LIMIT,  default=5"`
	IssueWindow time.Duration `env:"OTP_ISSUE_WINDOW, default=1h"`
	HashCost    int           `env:"OTP_HASH_COST,    default=10"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=healthvault"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type MailConfig struct {
	Provider    string        `env:"MAIL_PROVIDER,     default=log"`
	MaxAttempts int           `env:"MAIL_MAX_ATTEMPTS, default=3"`
	RetryDelay  time.Duration `env:"MAIL_RETRY_DELAY,  default=1s"`
	SendTimeout time.Duration `env:"MAIL_SEND_TIMEOUT, default=10s"`
	RatePerSec  float64       `env:"MAIL_RATE_PER_SEC, default=5"`
	Workers     int           `env:"DELIVERY_WORKERS,  default=4"`
}

type EmailJSConfig struct {
	Endpoint   string `env:"EMAILJS_ENDPOINT, default=https://api.emailjs.com/api/v1.0/email/send"`
	ServiceID  string `env:"EMAILJS_SERVICE_ID"`
	TemplateID string `env:"EMAILJS_TEMPLATE_ID"`
	PublicKey  string `env:"EMAILJS_PUBLIC_KEY"`
	PrivateKey string `env:"EMAILJS_PRIVATE_KEY"`
}

type BrandingConfig struct {
	AppName      string `env:"APP_NAME,      default=HealthVault"`
	AppURL       string `env:"APP_URL,       default=http://localhost:3000"`
	SupportEmail string `env:"SUPPORT_EMAIL, default=support@healthvault.local"`
}

// IsDevelopment reports whether the service runs in the local development
// environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, envDevelopment)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.OTP.IssueLimit < 0 {
		errs = append(errs, errors.New("OTP_ISSUE_LIMIT must not be negative"))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be positive"))
	}
	switch c.Mail.Provider {
	case "log":
	case "emailjs":
		if c.EmailJS.ServiceID == "" || c.EmailJS.TemplateID == "" || c.EmailJS.PublicKey == "" {
			errs = append(errs, errors.New("EMAILJS_SERVICE_ID, EMAILJS_TEMPLATE_ID and EMAILJS_PUBLIC_KEY are required for MAIL_PROVIDER=emailjs"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER must be emailjs or log, got %q", c.Mail.Provider))
	}
	if c.Mail.MaxAttempts < 1 {
		errs = append(errs, errors.New("MAIL_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Mail.Workers < 1 {
		errs = append(errs, errors.New("DELIVERY_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

// LoadFrom processes and validates configuration from lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
