package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10, cfg.OutboxLimit)
	assert.False(t, cfg.UseKafka)
}

func TestFromViper_EnvOverride(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("BACKEND_URL", "http://backend:9000/")
	t.Setenv("RESOLVER_RETRIES", "2")
	t.Setenv("USE_KAFKA", "true")

	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "http://backend:9000", cfg.BackendURL)
	assert.Equal(t, 2, cfg.ResolverRetries)
	assert.True(t, cfg.UseKafka)
}

func TestFromViper_InvalidDriver(t *testing.T) {
	v := NewViper()
	v.Set("DB_DRIVER", "oracle")

	_, err := FromViper(v)
	assert.Error(t, err)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alkimyk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT: \"9090\"\nDEBOUNCE: 100ms\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 100*time.Millisecond, cfg.Debounce)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
