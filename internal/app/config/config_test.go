package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `service_port = 9090
cors_origins = ["https://mutuelle.example"]

[quote]
ttl = "2h"

[carrier]
simulation_mode = false
base_url = "https://api.carrier.example/v1"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.toml"), []byte(content), 0o600))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, testConfig)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_EXPIRES_IN", "30m")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("CARRIER_USERNAME", "broker")
	t.Setenv("CARRIER_API_URL", "")

	cfg, err := Load("test", dir)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ServiceHost)
	assert.Equal(t, 9090, cfg.ServicePort)
	assert.Equal(t, []string{"https://mutuelle.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Hour, cfg.Quote.TTL)

	assert.False(t, cfg.Carrier.SimulationMode)
	assert.Equal(t, "https://api.carrier.example/v1", cfg.Carrier.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Carrier.Timeout)
	assert.Equal(t, "broker", cfg.Carrier.Username)

	assert.Equal(t, "secret", cfg.JWT.Token)
	assert.Equal(t, 30*time.Minute, cfg.JWT.ExpiresIn)
	assert.Equal(t, "redis", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)

	assert.False(t, cfg.MinIO.Enabled())
	assert.Equal(t, "documents", cfg.MinIO.Bucket)
}

func TestLoad_Errors(t *testing.T) {
	dir := writeConfig(t, testConfig)
	t.Setenv("CARRIER_API_URL", "")

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load("test", dir)
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("bad redis port", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("REDIS_PORT", "abc")
		_, err := Load("test", dir)
		assert.ErrorContains(t, err, "redis port")
	})

	t.Run("carrier url required outside simulation", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("REDIS_PORT", "")
		noURL := writeConfig(t, "[carrier]\nsimulation_mode = false\n")
		_, err := Load("test", noURL)
		assert.ErrorContains(t, err, "base_url")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("absent", t.TempDir())
		assert.Error(t, err)
	})
}
