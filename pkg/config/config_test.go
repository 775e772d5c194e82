package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionExpiry)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RememberMeExpiry)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ResetTokenExpiry)
	assert.GreaterOrEqual(t, cfg.Auth.BcryptCost, MinBcryptCost)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.AuthCeiling)
}

func TestLoadRejectsWeakBcryptCost(t *testing.T) {
	t.Setenv("BCRYPT_COST", "4")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestValidateProductionRejectsPlaceholderSecrets(t *testing.T) {
	cfg := &Config{
		Env: EnvProduction,
		Auth: AuthConfig{
			AccessTokenSecret:  devAccessSecret,
			RefreshTokenSecret: "real-refresh-secret",
			BcryptCost:         12,
		},
		Database: DatabaseConfig{Host: "db", Name: "campushub"},
	}
	require.Error(t, cfg.validate())

	cfg.Auth.AccessTokenSecret = "real-access-secret"
	cfg.Auth.RefreshTokenSecret = devRefreshSecret
	require.Error(t, cfg.validate())

	cfg.Auth.RefreshTokenSecret = "real-refresh-secret"
	require.NoError(t, cfg.validate())
}

func TestValidateProductionRequiresDatabase(t *testing.T) {
	cfg := &Config{
		Env: EnvProduction,
		Auth: AuthConfig{
			AccessTokenSecret:  "real-access-secret",
			RefreshTokenSecret: "real-refresh-secret",
			BcryptCost:         12,
		},
	}
	require.Error(t, cfg.validate())
}

func TestValidateDevelopmentToleratesDefaults(t *testing.T) {
	cfg := &Config{
		Env:  EnvDevelopment,
		Auth: AuthConfig{AccessTokenSecret: devAccessSecret, RefreshTokenSecret: devRefreshSecret, BcryptCost: 12},
	}
	require.NoError(t, cfg.validate())
}

func TestParseDurationFallsBack(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"},
		splitAndTrim(" https://a.example.com , https://b.example.com ,"))
}
