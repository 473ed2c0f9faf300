package domain

// Config holds the application configuration, loaded from the config
// file, environment and flags.
type Config struct {
	Username     string   `mapstructure:"username"`
	PasswordHash string   `mapstructure:"password_hash"`
	DatabaseDir  string   `mapstructure:"database_dir"`
	QueryDays    int      `mapstructure:"query_days"`
	Languages    []string `mapstructure:"languages"`
	MaxInFlight  int      `mapstructure:"max_in_flight"`
	UserAgent    string   `mapstructure:"user_agent"`
	WebhookURL   string   `mapstructure:"webhook_url"`

	// StationRenames maps station IDs to replacement display names,
	// applied at render time only.
	StationRenames map[string]string `mapstructure:"station_renames"`
}
