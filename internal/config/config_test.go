package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "lms"
redis_host = "localhost"
redis_port = "6379"
prom_metrics_host = "localhost"
prom_metrics_port = "2112"

[production]
host = ""
port = 9000
log_level = "debug"
logs_path = "/var/log/lms-backend.log"
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "lms"
redis_host = "localhost"
redis_port = "6379"
prom_metrics_host = "localhost"
prom_metrics_port = "2112"
login_rate_limit_attempts = 10
login_rate_limit_window_seconds = 120
`

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfigContent), 0o600))

	cfg, err := Load("development", configPath)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)

	// defaults kick in when not set
	assert.Equal(t, 5, cfg.LoginRateLimitAttempts)
	assert.Equal(t, 60, cfg.LoginRateLimitWindowSeconds)
	assert.Equal(t, 15, cfg.RegisterRateLimitPerMin)
	assert.Equal(t, 900, cfg.CourseCacheTTLSeconds)

	cfg, err = Load("prod", configPath)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/lms-backend.log", cfg.LogsPath)
	assert.Equal(t, 10, cfg.LoginRateLimitAttempts)
	assert.Equal(t, 120, cfg.LoginRateLimitWindowSeconds)

	_, err = Load("staging", configPath)
	assert.Error(t, err)
}
