package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"crop-outbreaks/internal/geo"
)

const (
	AlertBackendTable = "table"
	AlertBackendNotes = "notes"
)

type RedisConfig struct {
	Addr        string
	User        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
}

type OracleConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Retries int
}

type Config struct {
	HTTPAddr         string
	DatabaseURL      string
	Redis            RedisConfig
	AlertBackend     string
	Oracle           OracleConfig
	StoreTimeout     time.Duration
	EvaluateFromFeed bool
	// NotifierLocation is nil when no fix is configured.
	NotifierLocation *geo.Point
	LocateTimeout    time.Duration
	LogLevel         string
	LogFormat        string
}

func newViper() *viper.Viper {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_TIMEOUT", 3*time.Second)
	v.SetDefault("ALERT_BACKEND", AlertBackendTable)
	v.SetDefault("OUTBREAK_WEBHOOK_TIMEOUT", 15*time.Second)
	v.SetDefault("OUTBREAK_WEBHOOK_RETRIES", 1)
	v.SetDefault("STORE_TIMEOUT", 10*time.Second)
	v.SetDefault("EVALUATE_FROM_FEED", false)
	v.SetDefault("LOCATE_TIMEOUT", 8*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	return v
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := newViper()

	cfg := &Config{
		HTTPAddr:     v.GetString("HTTP_ADDR"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		Redis:        redisConfig(v),
		AlertBackend: strings.ToLower(strings.TrimSpace(v.GetString("ALERT_BACKEND"))),
		Oracle: OracleConfig{
			URL:     strings.TrimSpace(v.GetString("OUTBREAK_WEBHOOK_URL")),
			Token:   v.GetString("OUTBREAK_WEBHOOK_TOKEN"),
			Timeout: v.GetDuration("OUTBREAK_WEBHOOK_TIMEOUT"),
			Retries: v.GetInt("OUTBREAK_WEBHOOK_RETRIES"),
		},
		StoreTimeout:     v.GetDuration("STORE_TIMEOUT"),
		EvaluateFromFeed: v.GetBool("EVALUATE_FROM_FEED"),
		LocateTimeout:    v.GetDuration("LOCATE_TIMEOUT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}

	if v.IsSet("NOTIFIER_LAT") && v.IsSet("NOTIFIER_LNG") {
		p := geo.Point{Lat: v.GetFloat64("NOTIFIER_LAT"), Lng: v.GetFloat64("NOTIFIER_LNG")}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("notifier location: %w", err)
		}
		cfg.NotifierLocation = &p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.AlertBackend {
	case AlertBackendTable, AlertBackendNotes:
	default:
		return fmt.Errorf("ALERT_BACKEND must be %q or %q, got %q", AlertBackendTable, AlertBackendNotes, c.AlertBackend)
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("OUTBREAK_WEBHOOK_TIMEOUT must be positive")
	}
	if c.Oracle.Retries < 0 {
		return fmt.Errorf("OUTBREAK_WEBHOOK_RETRIES must not be negative")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.LocateTimeout <= 0 {
		return fmt.Errorf("LOCATE_TIMEOUT must be positive")
	}
	return nil
}

func GetDBURL() string {
	return newViper().GetString("DATABASE_URL")
}

func GetRedisConfig() RedisConfig {
	return redisConfig(newViper())
}

func redisConfig(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:        v.GetString("REDIS_ADDR"),
		User:        v.GetString("REDIS_USER"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		MaxRetries:  v.GetInt("REDIS_MAX_RETRIES"),
		DialTimeout: v.GetDuration("REDIS_DIAL_TIMEOUT"),
		Timeout:     v.GetDuration("REDIS_TIMEOUT"),
	}
}
