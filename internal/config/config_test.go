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

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 15000, cfg.AI.MaxPromptChars)
	assert.Equal(t, 30*time.Minute, cfg.Staging.TTL)
	assert.False(t, cfg.AI.StrictCalendar)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Worker.SweepInterval)
}

func TestLoadMissingAPIKeyIsNotFatal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AI.APIKey)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("STAGING_TTL", "5m")
	t.Setenv("STORAGE_DRIVER", "LOCAL")
	t.Setenv("UPLOAD_DIR", "/tmp/staged")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Staging.TTL)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/staged", cfg.Storage.UploadDir)
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresMinioCredentials(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "minio")
	_, err := Load()
	require.EqualError(t, err, "minio access key id is required")
}

func TestLoadRequiresKeyPairTogether(t *testing.T) {
	t.Setenv("JWT_PRIVATE_KEY_PATH", "/keys/private.pem")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsZeroWorkerConcurrency(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err := Load()
	require.EqualError(t, err, "worker concurrency must be positive")
}
