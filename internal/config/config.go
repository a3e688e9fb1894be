package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-lookup/internal/logger"
)

type AppConfig struct {
	// WeatherAPIKey is the credential passed to every lookup.
	WeatherAPIKey string `yaml:"weather_api_key"`

	Provider           string `yaml:"weather_provider" validate:"oneof=openweather weatherapi"`
	Geocoder           string `yaml:"geocoder" validate:"omitempty,oneof=google"`
	GoogleAPIKey       string `yaml:"google_geocoding_api_key" validate:"required_if=Geocoder google"`
	ConditionsProvider string `yaml:"conditions_provider" validate:"omitempty,oneof=openmeteo"`
	BaseURL            string `yaml:"weather_base_url" validate:"omitempty,url"`
	Units              string `yaml:"units" validate:"oneof=imperial metric standard"`

	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`

	StoreDriver string `yaml:"store_driver" validate:"oneof=memory sqlite3 postgres mysql"`
	StoreDSN    string `yaml:"store_dsn" validate:"required_unless=StoreDriver memory"`

	Port                 string        `yaml:"port" validate:"required,numeric"`
	SessionTTL           time.Duration `yaml:"session_ttl" validate:"gte=0"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval" validate:"gt=0"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		Provider:             "openweather",
		Units:                "imperial",
		HTTPTimeout:          10 * time.Second,
		StoreDriver:          "sqlite3",
		Port:                 "8080",
		SessionTTL:           30 * time.Minute,
		SessionSweepInterval: time.Minute,
		LogLevel:             "INFO",
	}
}

var validate = validator.New()

// DefaultStoreDSN is the SQLite file used when STORE_DSN is not set.
func DefaultStoreDSN() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no user config directory: %w", err)
	}
	return filepath.Join(dir, "weather-lookup", "last_location.db"), nil
}

// Load reads configuration from the environment, then from the YAML file
// named by CONFIG_PATH, then defaults, in that order of precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("config: no .env file loaded: %v", err)
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.StoreDriver == "sqlite3" && cfg.StoreDSN == "" {
		dsn, err := DefaultStoreDSN()
		if err != nil {
			logger.Warnf("config: %v; selection will not survive restarts", err)
			cfg.StoreDriver = "memory"
		} else {
			cfg.StoreDSN = dsn
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.WeatherAPIKey == "" {
		logger.Warnf("config: WEATHER_API_KEY is empty; keyed providers will reject requests")
	}
	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *AppConfig) error {
	cfg.WeatherAPIKey = getenvDefault("WEATHER_API_KEY", cfg.WeatherAPIKey)
	cfg.Provider = getenvDefault("WEATHER_PROVIDER", cfg.Provider)
	cfg.Geocoder = getenvDefault("GEOCODER", cfg.Geocoder)
	cfg.GoogleAPIKey = getenvDefault("GOOGLE_GEOCODING_API_KEY", cfg.GoogleAPIKey)
	cfg.ConditionsProvider = getenvDefault("CONDITIONS_PROVIDER", cfg.ConditionsProvider)
	cfg.BaseURL = getenvDefault("WEATHER_BASE_URL", cfg.BaseURL)
	cfg.Units = getenvDefault("UNITS", cfg.Units)
	cfg.StoreDriver = getenvDefault("STORE_DRIVER", cfg.StoreDriver)
	cfg.StoreDSN = getenvDefault("STORE_DSN", cfg.StoreDSN)
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", cfg.SessionTTL); err != nil {
		return err
	}
	if cfg.SessionSweepInterval, err = getenvDuration("SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval); err != nil {
		return err
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
