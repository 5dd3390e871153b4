// Package config loads service configuration from an optional YAML file with
// environment overrides for deploy-time settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string    `yaml:"port"`
	DatabaseURL string    `yaml:"databaseUrl"`
	RedisURL    string    `yaml:"redisUrl"`
	PriceFeed   PriceFeed `yaml:"priceFeed"`
	Markets     Markets   `yaml:"markets"`
	Optimizer   Optimizer `yaml:"optimizer"`
	Webhooks    Webhooks  `yaml:"webhooks"`
}

type PriceFeed struct {
	BaseURL    string  `yaml:"baseUrl"`
	TimeoutMs  int     `yaml:"timeoutMs"`
	RatePerSec float64 `yaml:"ratePerSec"`
}

type Markets struct {
	PortMarkers    map[string]string  `yaml:"portMarkers"`
	Instruments    map[string]string  `yaml:"instruments"`
	FallbackPrices map[string]float64 `yaml:"fallbackPrices"`
	DefaultMarker  string             `yaml:"defaultMarker"`
	DefaultPrice   float64            `yaml:"defaultPrice"`
}

type Optimizer struct {
	ReferenceDistance    float64 `yaml:"referenceDistance"`
	OpportunityThreshold float64 `yaml:"opportunityThreshold"`
	WarningPort          string  `yaml:"warningPort"`
	WarningDays          float64 `yaml:"warningDays"`
}

type Webhooks struct {
	MaxAttempts int `yaml:"maxAttempts"`
}

// Default returns the built-in configuration. Market maps are left empty
// here; the pricefeed package supplies its defaults when none are configured.
func Default() Config {
	return Config{
		Port: "8080",
		PriceFeed: PriceFeed{
			TimeoutMs:  3000,
			RatePerSec: 5,
		},
		Optimizer: Optimizer{
			ReferenceDistance:    3000,
			OpportunityThreshold: 13.0,
			WarningPort:          "Busan",
			WarningDays:          140,
		},
		Webhooks: Webhooks{MaxAttempts: 10},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv builds the effective configuration: defaults, then CONFIG_PATH
// file if set, then environment overrides.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("PRICE_FEED_URL"); v != "" {
		cfg.PriceFeed.BaseURL = v
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Webhooks.MaxAttempts = n
		}
	}
	return cfg, nil
}
