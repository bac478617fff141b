package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session storage drivers.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	BackendURL      string        `mapstructure:"BACKEND_URL"`
	HTTPTimeout     time.Duration `mapstructure:"HTTP_TIMEOUT"`
	BillingSendAuth bool          `mapstructure:"BILLING_SEND_AUTH"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`

	SessionStore     string `mapstructure:"SESSION_STORE"`
	SessionFile      string `mapstructure:"SESSION_FILE"`
	SessionNamespace string `mapstructure:"SESSION_NAMESPACE"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32  `mapstructure:"DB_MIN_CONNS"`

	ClickSendUsername string  `mapstructure:"CLICKSEND_USERNAME"`
	ClickSendAPIKey   string  `mapstructure:"CLICKSEND_API_KEY"`
	ClickSendFrom     string  `mapstructure:"CLICKSEND_FROM"`
	SMSRateLimitRPS   float64 `mapstructure:"SMS_RATE_LIMIT_RPS"`
	SMSRateLimitBurst int     `mapstructure:"SMS_RATE_LIMIT_BURST"`

	LoginRateLimitRPS   float64 `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	LoginRateLimitBurst int     `mapstructure:"LOGIN_RATE_LIMIT_BURST"`
}

var keys = []string{
	"ENV",
	"PORT",
	"BACKEND_URL",
	"HTTP_TIMEOUT",
	"BILLING_SEND_AUTH",
	"CORS_ORIGINS",
	"SESSION_STORE",
	"SESSION_FILE",
	"SESSION_NAMESPACE",
	"REDIS_URL",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"CLICKSEND_USERNAME",
	"CLICKSEND_API_KEY",
	"CLICKSEND_FROM",
	"SMS_RATE_LIMIT_RPS",
	"SMS_RATE_LIMIT_BURST",
	"LOGIN_RATE_LIMIT_RPS",
	"LOGIN_RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("BACKEND_URL", "http://localhost:5000")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("BILLING_SEND_AUTH", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("SESSION_STORE", StoreFile)
	v.SetDefault("SESSION_FILE", ".clinitech/session.json")
	v.SetDefault("SESSION_NAMESPACE", "clinitech:session:")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("SMS_RATE_LIMIT_RPS", 1)
	v.SetDefault("SMS_RATE_LIMIT_BURST", 5)
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 0.5)
	v.SetDefault("LOGIN_RATE_LIMIT_BURST", 10)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.SessionStore = strings.ToLower(cfg.SessionStore)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() && cfg.BillingSendAuth {
		log.Println("WARNING: BILLING_SEND_AUTH is enabled; billing requests will carry the doctor's bearer token.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SMSDeliveryEnabled reports whether ClickSend credentials are configured.
func (c *Config) SMSDeliveryEnabled() bool {
	return c.ClickSendUsername != "" && c.ClickSendAPIKey != ""
}

// Validate checks that the selected session store has the settings it needs
// and that the backend URL is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("BACKEND_URL is not a valid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL scheme must be http or https, got %q", u.Scheme)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}

	switch c.SessionStore {
	case StoreFile:
		if c.SessionFile == "" {
			return fmt.Errorf("SESSION_FILE is required when SESSION_STORE is %q", StoreFile)
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE is %q", StoreRedis)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SESSION_STORE is %q", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("SESSION_STORE must be \"file\", \"redis\", \"postgres\", or \"memory\", got %q", c.SessionStore)
	}

	if (c.ClickSendUsername == "") != (c.ClickSendAPIKey == "") {
		return fmt.Errorf("CLICKSEND_USERNAME and CLICKSEND_API_KEY must be set together")
	}
	if c.SMSRateLimitRPS <= 0 {
		return fmt.Errorf("SMS_RATE_LIMIT_RPS must be positive")
	}
	if c.LoginRateLimitRPS < 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_RPS must not be negative")
	}
	return nil
}
