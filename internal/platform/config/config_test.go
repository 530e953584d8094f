package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoConfigFileOrEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("DESKFLOW_PASSPHRASE", "")
	t.Setenv("ENCRYPTION_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "deskflowd", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 1.0, cfg.Replay.DefaultSpeedMultiplier)
	assert.Equal(t, "dev", cfg.Version)
	assert.Equal(t, cfg.Service.Name, cfg.Telemetry.ServiceName)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	viper.Reset()
	t.Setenv("ENCRYPTION_ENABLED", "false")
	t.Setenv("SERVICE_NAME", "deskflowd-test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "deskflowd-test", cfg.Service.Name)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_RequiresPassphraseWhenEncryptionEnabled(t *testing.T) {
	viper.Reset()
	t.Setenv("ENCRYPTION_ENABLED", "true")
	t.Setenv("DESKFLOW_PASSPHRASE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_VersionFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("ENCRYPTION_ENABLED", "false")
	t.Setenv("VERSION", "1.2.3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", cfg.Version)
}
