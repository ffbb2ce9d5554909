package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	StorageDriver    string   `mapstructure:"STORAGE_DRIVER"`
	StoragePath      string   `mapstructure:"STORAGE_PATH"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	SavedDisplayMS   int      `mapstructure:"SAVED_DISPLAY_MS"`
	RequestTimeoutMS int      `mapstructure:"REQUEST_TIMEOUT_MS"`
	FixturesFile     string   `mapstructure:"FIXTURES_FILE"`
	SimulationMode   string   `mapstructure:"SIMULATION_MODE"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
}

var storageDrivers = map[string]bool{"memory": true, "file": true, "sqlite": true, "postgres": true}

var simulationModes = map[string]bool{"": true, "first_visit": true, "has_previous_visit": true}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", "file")
	v.SetDefault("STORAGE_PATH", "./data")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("SAVED_DISPLAY_MS", 2000)
	v.SetDefault("REQUEST_TIMEOUT_MS", 10000)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "STORAGE_DRIVER", "STORAGE_PATH",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SAVED_DISPLAY_MS",
		"REQUEST_TIMEOUT_MS", "FIXTURES_FILE", "SIMULATION_MODE", "CORS_ORIGINS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) SavedDisplay() time.Duration {
	return time.Duration(c.SavedDisplayMS) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration can be started with.
func (c *Config) Validate() error {
	if !storageDrivers[c.StorageDriver] {
		return fmt.Errorf("STORAGE_DRIVER must be one of memory, file, sqlite or postgres, got %q", c.StorageDriver)
	}
	if c.StorageDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is postgres")
	}
	if (c.StorageDriver == "file" || c.StorageDriver == "sqlite") && c.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH is required when STORAGE_DRIVER is %s", c.StorageDriver)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SavedDisplayMS <= 0 {
		return fmt.Errorf("SAVED_DISPLAY_MS must be positive, got %d", c.SavedDisplayMS)
	}
	if c.RequestTimeoutMS < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must not be negative, got %d", c.RequestTimeoutMS)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if !simulationModes[c.SimulationMode] {
		return fmt.Errorf("SIMULATION_MODE must be first_visit or has_previous_visit, got %q", c.SimulationMode)
	}
	return nil
}
