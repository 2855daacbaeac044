package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// inTempDir runs the test from an empty directory so no stray .env is read.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "fuelquota.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Scheduler.Enabled)

	interval, err := cfg.SchedulerInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, interval)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := inTempDir(t)
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9090
database:
  path: /var/lib/fleet.db
log:
  level: debug
  format: console
scheduler:
  enabled: false
  interval: 30m
`)
	t.Setenv("FUELQUOTA_PORT", "7070")
	t.Setenv("FUELQUOTA_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "env overrides yaml")
	assert.Equal(t, "/var/lib/fleet.db", cfg.Database.Path)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, dir, ".env", "FUELQUOTA_DB=from-dotenv.db\nFUELQUOTA_SCHEDULER_ENABLED=false\n")
	t.Cleanup(func() {
		os.Unsetenv("FUELQUOTA_DB")
		os.Unsetenv("FUELQUOTA_SCHEDULER_ENABLED")
	})

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"FUELQUOTA_PORT": "http"}},
		{"port out of range", map[string]string{"FUELQUOTA_PORT": "70000"}},
		{"bad interval", map[string]string{"FUELQUOTA_SCHEDULER_INTERVAL": "hourly"}},
		{"negative interval", map[string]string{"FUELQUOTA_SCHEDULER_INTERVAL": "-1h"}},
		{"bad format", map[string]string{"FUELQUOTA_LOG_FORMAT": "xml"}},
		{"bad bool", map[string]string{"FUELQUOTA_SCHEDULER_ENABLED": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	inTempDir(t)
	_, err := config.Load("does-not-exist.yaml")
	assert.Error(t, err)
}
