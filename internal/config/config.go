// Package config loads the service configuration from TFINANCE_* environment
// variables (and an optional .env file) into typed structs.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const (
	envPrefix = "TFINANCE_"

	// DevJWTKey is only accepted outside production.
	DevJWTKey = "dev-secret-change-in-production-0123456789"
)

var ErrInsecureJWTKey = errors.New("jwt key must be set in production")

type Config struct {
	Server    ServerConfig    `koanf:"server" validate:"required"`
	Database  DatabaseConfig  `koanf:"database" validate:"required"`
	JWT       JWTConfig       `koanf:"jwt" validate:"required"`
	App       AppConfig       `koanf:"app" validate:"required"`
	Mail      MailConfig      `koanf:"mail" validate:"required"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Redis     RedisConfig     `koanf:"redis"`
	YooKassa  YooKassaConfig  `koanf:"yookassa"`
	Premium   PremiumConfig   `koanf:"premium" validate:"required"`
	Files     FilesConfig     `koanf:"files" validate:"required"`
	RateLimit RateLimitConfig `koanf:"ratelimit" validate:"required"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	Env                string   `koanf:"env" validate:"required,oneof=development staging production"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	TrustProxy         bool     `koanf:"trust_proxy"`
	TrustedProxies     []string `koanf:"trusted_proxies"`
}

// TrustedProxyPrefixes parses trusted_proxies. Bare addresses become
// single-host prefixes.
func (c ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

type DatabaseConfig struct {
	Driver                 string `koanf:"driver" validate:"required,oneof=mysql sqlite"`
	DSN                    string `koanf:"dsn" validate:"required"`
	MaxOpenConns           int    `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns           int    `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetimeMinutes int    `koanf:"conn_max_lifetime_minutes" validate:"min=1"`
	AutoMigrate            bool   `koanf:"auto_migrate"`
}

type JWTConfig struct {
	Key            string `koanf:"key" validate:"required,min=32"`
	Issuer         string `koanf:"issuer" validate:"required"`
	Audience       string `koanf:"audience" validate:"required"`
	ExpiresInHours int    `koanf:"expires_in_hours" validate:"min=1"`
}

// Lifetime is the validity of issued tokens and their sessions.
func (c JWTConfig) Lifetime() time.Duration {
	return time.Duration(c.ExpiresInHours) * time.Hour
}

type AppConfig struct {
	BaseURL              string `koanf:"base_url"`
	FrontendURL          string `koanf:"frontend_url" validate:"required,url"`
	VerificationTTLHours int    `koanf:"verification_ttl_hours" validate:"min=1"`
}

type MailConfig struct {
	Provider     string `koanf:"provider" validate:"required,oneof=smtp resend log"`
	ResendAPIKey string `koanf:"resend_api_key"`
}

type SMTPConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	FromEmail string `koanf:"from_email"`
	FromName  string `koanf:"from_name"`
}

// From returns the sender address, falling back to the SMTP username.
func (c SMTPConfig) From() string {
	if strings.TrimSpace(c.FromEmail) != "" {
		return c.FromEmail
	}
	return c.Username
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type YooKassaConfig struct {
	ShopID    string `koanf:"shop_id"`
	SecretKey string `koanf:"secret_key"`
	ReturnURL string `koanf:"return_url"`
	APIURL    string `koanf:"api_url" validate:"required,url"`
}

// Configured reports whether the payment gateway credentials are present.
func (c YooKassaConfig) Configured() bool {
	return c.ShopID != "" && c.SecretKey != "" && c.ReturnURL != ""
}

type PremiumConfig struct {
	Price        decimal.Decimal `koanf:"price"`
	Currency     string          `koanf:"currency" validate:"required,len=3"`
	DurationDays int             `koanf:"duration_days" validate:"min=1"`
}

type FilesConfig struct {
	Backend     string `koanf:"backend" validate:"required,oneof=local s3"`
	Dir         string `koanf:"dir"`
	AppArchive  string `koanf:"app_archive" validate:"required"`
	S3Bucket    string `koanf:"s3_bucket"`
	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`
}

type RateLimitConfig struct {
	LoginPerMinute    int `koanf:"login_per_minute" validate:"min=1"`
	RegisterPerMinute int `koanf:"register_per_minute" validate:"min=1"`
	GlobalPerMinute   int `koanf:"global_per_minute" validate:"min=1"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			Env:                "development",
			ReadTimeout:        15,
			WriteTimeout:       15,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"http://localhost:5173"},
			TrustProxy:         true,
			TrustedProxies:     []string{"127.0.0.1/32", "::1/128"},
		},
		Database: DatabaseConfig{
			Driver:                 "sqlite",
			DSN:                    "file:data/tfinance.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 5,
			AutoMigrate:            true,
		},
		JWT: JWTConfig{
			Key:            DevJWTKey,
			Issuer:         "tfinance",
			Audience:       "tfinance-web",
			ExpiresInHours: 1,
		},
		App: AppConfig{
			BaseURL:              "http://localhost:8080",
			FrontendURL:          "https://t-finance-web.ru",
			VerificationTTLHours: 24,
		},
		Mail: MailConfig{Provider: "log"},
		SMTP: SMTPConfig{
			Host:     "smtp.yandex.ru",
			Port:     587,
			FromName: "T-Finance",
		},
		YooKassa: YooKassaConfig{APIURL: "https://api.yookassa.ru/v3"},
		Premium: PremiumConfig{
			Price:        decimal.RequireFromString("999.00"),
			Currency:     "RUB",
			DurationDays: 30,
		},
		Files: FilesConfig{
			Backend:    "local",
			Dir:        "files",
			AppArchive: "T-Finance.zip",
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute:    5,
			RegisterPerMinute: 3,
			GlobalPerMinute:   1000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads .env (if present) and TFINANCE_* variables on top of Default.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(env.Provider(envPrefix, ".", envKey))
}

// LoadFrom unmarshals the given koanf provider on top of Default and validates the result.
func LoadFrom(p koanf.Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(p, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Server.Env == "production" && c.JWT.Key == DevJWTKey {
		return ErrInsecureJWTKey
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Premium.Price.IsPositive() {
		return errors.New("invalid config: premium price must be positive")
	}

	switch c.Mail.Provider {
	case "smtp":
		if c.SMTP.Host == "" || c.SMTP.Username == "" || c.SMTP.Password == "" || c.SMTP.From() == "" {
			return errors.New("invalid config: smtp host, username, password and from address are required")
		}
	case "resend":
		if c.Mail.ResendAPIKey == "" {
			return errors.New("invalid config: resend api key is required")
		}
	}

	if c.Files.Backend == "s3" && c.Files.S3Bucket == "" {
		return errors.New("invalid config: s3 bucket is required for the s3 file backend")
	}
	return nil
}

// envKey maps TFINANCE_JWT_EXPIRES_IN_HOURS to jwt.expires_in_hours.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}
