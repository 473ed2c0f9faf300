package config

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/tvheim/epgdb/internal/domain"
)

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml/config.toml, optional)
// 2. Environment variables (EPGDB_*)
// 3. Flags bound by the commands
func Load() (*domain.Config, error) {
	cfg := &domain.Config{}

	cfg.Username = viper.GetString("username")
	cfg.PasswordHash = viper.GetString("password_hash")
	cfg.DatabaseDir = viper.GetString("database_dir")
	cfg.QueryDays = viper.GetInt("query_days")
	cfg.Languages = viper.GetStringSlice("languages")
	cfg.MaxInFlight = viper.GetInt("max_in_flight")
	cfg.UserAgent = viper.GetString("user_agent")
	cfg.WebhookURL = viper.GetString("webhook_url")
	cfg.StationRenames = viper.GetStringMapString("station_renames")

	if cfg.DatabaseDir == "" {
		cfg.DatabaseDir = "."
	}
	if cfg.QueryDays == 0 {
		cfg.QueryDays = 7
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en", "de"}
	}
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "epgdb"
	}

	if cfg.QueryDays < 1 || cfg.QueryDays > 14 {
		return nil, fmt.Errorf("query_days must be between 1 and 14, got %d", cfg.QueryDays)
	}
	if cfg.MaxInFlight < 1 {
		return nil, fmt.Errorf("max_in_flight must be at least 1, got %d", cfg.MaxInFlight)
	}

	return cfg, nil
}

// LoadWithCredentials is Load plus a check that provider credentials
// are present. Commands that talk to the provider use this; local-only
// commands use Load.
func LoadWithCredentials() (*domain.Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required (set via config file or EPGDB_USERNAME)")
	}
	if cfg.PasswordHash == "" {
		return nil, fmt.Errorf("password_hash is required (set via config file or EPGDB_PASSWORD_HASH)")
	}

	return cfg, nil
}
