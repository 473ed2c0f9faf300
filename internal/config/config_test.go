package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.DatabaseDir)
	assert.Equal(t, 7, cfg.QueryDays)
	assert.Equal(t, []string{"en", "de"}, cfg.Languages)
	assert.Equal(t, 4, cfg.MaxInFlight)
	assert.Equal(t, "epgdb", cfg.UserAgent)
}

func TestLoadValidatesQueryDays(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("query_days", 30)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query_days")
}

func TestLoadStationRenames(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("station_renames", map[string]string{"12345": "My Channel"})
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "My Channel", cfg.StationRenames["12345"])
}

func TestLoadWithCredentials(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadWithCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")

	viper.Set("username", "user")
	_, err = LoadWithCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password_hash")

	viper.Set("password_hash", "deadbeef")
	cfg, err := LoadWithCredentials()
	require.NoError(t, err)
	assert.Equal(t, "user", cfg.Username)
}
