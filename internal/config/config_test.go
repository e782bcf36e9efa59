package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointing AGRI_CONFIG_FILE at a missing path keeps a stray config.yaml in
// the working directory from leaking into the test
func isolateConfigFile(t *testing.T) {
	t.Helper()
	t.Setenv("AGRI_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigFile(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, "data/observations.csv", cfg.Data.Path)
	assert.Equal(t, 7, cfg.Analysis.DefaultWindow)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateConfigFile(t)
	t.Setenv("AGRI_SERVER_PORT", "9999")
	t.Setenv("AGRI_LOGGING_LEVEL", "debug")
	t.Setenv("AGRI_DATA_SOURCE", "postgres")
	t.Setenv("AGRI_DATA_DSN", "postgres://localhost/prices?sslmode=disable")
	t.Setenv("AGRI_ANALYSIS_DEFAULT_WINDOW", "14")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "postgres", cfg.Data.Source)
	assert.Equal(t, "postgres://localhost/prices?sslmode=disable", cfg.Data.DSN)
	assert.Equal(t, 14, cfg.Analysis.DefaultWindow)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  dsn: postgres://filehost/prices\n"), 0o644))
	t.Setenv("AGRI_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://filehost/prices", cfg.Data.DSN)
}

func TestLoad_ConfigFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	t.Setenv("AGRI_CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port out of range", env: map[string]string{"AGRI_SERVER_PORT": "70000"}},
		{name: "unknown data source", env: map[string]string{"AGRI_DATA_SOURCE": "ftp"}},
		{name: "postgres without dsn", env: map[string]string{"AGRI_DATA_SOURCE": "postgres"}},
		{name: "zero default window", env: map[string]string{"AGRI_ANALYSIS_DEFAULT_WINDOW": "0"}},
		{name: "bogus log level", env: map[string]string{"AGRI_LOGGING_LEVEL": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigFile(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
