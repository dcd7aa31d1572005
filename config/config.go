// Package config loads service settings from .env, an optional config.yaml and
// the environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go-restaurant-ordering/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	MongoURI string `mapstructure:"mongo_uri"`
	MongoDB  string `mapstructure:"mongo_db"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	QuoteCacheTTL time.Duration `mapstructure:"quote_cache_ttl"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	SMSURL    string `mapstructure:"sms_url"`
	SMSAPIKey string `mapstructure:"sms_api_key"`
	SMSFrom   string `mapstructure:"sms_from"`

	RouteURL    string `mapstructure:"route_url"`
	RouteAPIKey string `mapstructure:"route_api_key"`

	SecretKey string `mapstructure:"secret_key"`

	DebounceWindow      time.Duration   `mapstructure:"debounce_window"`
	AddressSettle       time.Duration   `mapstructure:"address_settle"`
	RouteTimeout        time.Duration   `mapstructure:"route_timeout"`
	NotificationTimeout time.Duration   `mapstructure:"notification_timeout"`
	ShutdownTimeout     time.Duration   `mapstructure:"shutdown_timeout"`
	BaseFee             int64           `mapstructure:"base_fee"`
	PerKmFee            int64           `mapstructure:"per_km_fee"`
	FallbackFee         int64           `mapstructure:"fallback_fee"`
	MaxFee              int64           `mapstructure:"max_fee"`
	Branches            []models.Branch `mapstructure:"-"`
	CORSOrigins         []string        `mapstructure:"cors_origins"`
}

var defaults = map[string]interface{}{
	"port":                 "8000",
	"log_level":            "info",
	"mongo_db":             "restaurant",
	"quote_cache_ttl":      10 * time.Minute,
	"kafka_topic":          "order.placed",
	"sms_from":             "Restaurant",
	"debounce_window":      300 * time.Millisecond,
	"address_settle":       600 * time.Millisecond,
	"route_timeout":        3 * time.Second,
	"notification_timeout": 10 * time.Second,
	"shutdown_timeout":     15 * time.Second,
	"base_fee":             300,
	"per_km_fee":           100,
	"fallback_fee":         500,
	"max_fee":              0,
	"cors_origins":         []string{"http://localhost:9000"},
}

// Load reads envFile if it exists, then config.yaml from dir if present, then the
// process environment. Keys map to upper-case env names, e.g. MONGO_URI.
func Load(envFile, dir string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()
	for k := range defaults {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}
	for _, k := range []string{"mongo_uri", "redis_addr", "kafka_brokers", "sms_url", "sms_api_key", "route_url", "route_api_key", "secret_key", "branches"} {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	branches, err := loadBranches(v)
	if err != nil {
		return nil, err
	}
	cfg.Branches = branches

	if cfg.SecretKey == "" {
		return nil, errors.New("SECRET_KEY is required")
	}
	return &cfg, nil
}

// loadBranches accepts a YAML list or, from the environment, a JSON array.
func loadBranches(v *viper.Viper) ([]models.Branch, error) {
	var branches []models.Branch
	if raw, ok := v.Get("branches").(string); ok {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(raw), &branches); err != nil {
			return nil, fmt.Errorf("decode BRANCHES: %w", err)
		}
	} else if err := v.UnmarshalKey("branches", &branches); err != nil {
		return nil, fmt.Errorf("decode branches: %w", err)
	}
	for _, b := range branches {
		if b.ID == "" {
			return nil, fmt.Errorf("branch %q has no id", b.Name)
		}
	}
	return branches, nil
}

// splitList lets env values like "a,b" stand for a list.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
