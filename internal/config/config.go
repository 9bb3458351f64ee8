package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the application configuration
type Config struct {
	Env     string `env:"ENV" env-default:"development"`
	Port    string `env:"PORT" env-default:"5000"`
	DevMode bool   `env:"DEV_MODE" env-default:"false"`

	LogLevel       string   `env:"LOG_LEVEL" env-default:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" env-default:"true"`

	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxy bool `env:"TRUST_PROXY" env-default:"false"`

	HTTP      HTTPConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Captcha   CaptchaConfig
	SMTP      SMTPConfig
	SMS       SMSConfig
	Images    ImagesConfig
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// StoreConfig selects the persistence driver: mongo (default), postgres or memory.
type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER" env-default:"mongo"`
	MongoURI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" env-default:"notememory"`
	DatabaseURL   string `env:"DATABASE_URL"`
}

type AuthConfig struct {
	JWTSecret        string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" env-default:"1h"`
	RememberTokenTTL time.Duration `env:"REMEMBER_TOKEN_TTL" env-default:"168h"`
	OTPTTL           time.Duration `env:"OTP_TTL" env-default:"10m"`
	BcryptCost       int           `env:"BCRYPT_COST" env-default:"10"`
}

// RateLimitConfig configures the abuse guard. Backend is memory (per process) or redis.
type RateLimitConfig struct {
	Backend      string        `env:"RATE_LIMIT_BACKEND" env-default:"memory"`
	RedisURL     string        `env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	SignupMax    int           `env:"RATE_LIMIT_SIGNUP_MAX" env-default:"5"`
	SignupWindow time.Duration `env:"RATE_LIMIT_SIGNUP_WINDOW" env-default:"1h"`
	OTPMax       int           `env:"RATE_LIMIT_OTP_MAX" env-default:"5"`
	OTPWindow    time.Duration `env:"RATE_LIMIT_OTP_WINDOW" env-default:"15m"`
}

type CaptchaConfig struct {
	Secret    string        `env:"RECAPTCHA_SECRET"`
	VerifyURL string        `env:"RECAPTCHA_VERIFY_URL" env-default:"https://www.google.com/recaptcha/api/siteverify"`
	Timeout   time.Duration `env:"RECAPTCHA_TIMEOUT" env-default:"5s"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
	FromName string `env:"SMTP_FROM_NAME" env-default:"I-Memory"`
}

type SMSConfig struct {
	Region          string        `env:"AWS_REGION"`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	SenderID        string        `env:"SMS_SENDER_ID" env-default:"IMemory"`
	Timeout         time.Duration `env:"SMS_TIMEOUT" env-default:"10s"`
}

// ImagesConfig selects the image host: cloudinary, minio or none.
type ImagesConfig struct {
	Provider string `env:"IMAGE_PROVIDER" env-default:"cloudinary"`

	CloudinaryName      string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER" env-default:"imemory"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" env-default:"imemory-notes"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	MinIOPublicURL string `env:"MINIO_PUBLIC_URL"`

	MaxUploadBytes int64 `env:"IMAGE_MAX_UPLOAD_BYTES" env-default:"10485760"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that depend on the selected drivers.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.OTPTTL <= 0 || c.Auth.TokenTTL <= 0 || c.Auth.RememberTokenTTL <= 0 {
		return fmt.Errorf("token and OTP lifetimes must be positive")
	}

	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		if _, err := url.Parse(c.Store.DatabaseURL); err != nil {
			return fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("the memory store cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}
	if c.RateLimit.SignupMax <= 0 || c.RateLimit.OTPMax <= 0 {
		return fmt.Errorf("rate limit maxima must be positive")
	}

	switch c.Images.Provider {
	case "cloudinary", "minio", "none":
	default:
		return fmt.Errorf("unknown IMAGE_PROVIDER %q", c.Images.Provider)
	}

	if !c.DevMode {
		if c.Captcha.Secret == "" {
			return fmt.Errorf("RECAPTCHA_SECRET is required unless DEV_MODE is enabled")
		}
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM are required unless DEV_MODE is enabled")
		}
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SMSEnabled reports whether AWS credentials for SMS delivery are present.
func (c *Config) SMSEnabled() bool {
	return c.SMS.Region != "" && c.SMS.AccessKeyID != "" && c.SMS.SecretAccessKey != ""
}
