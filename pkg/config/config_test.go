package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, time.Hour, cfg.Auth.AccessTokenExpiration)
	require.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenExpiration)
	require.Equal(t, "mobile", cfg.Auth.DefaultDeviceName)
	require.Equal(t, "mobile_api", cfg.Metrics.Prefix)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("AUTH_ACCESS_TOKEN_EXPIRATION", "15m")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("DB_MAX_IDLE_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenExpiration)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	// Bad values fall back to the default
	require.Equal(t, 10, cfg.Database.MaxIdleConns)
}
