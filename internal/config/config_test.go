package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
printing:
  time_per_page: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Printing.TimePerPage)
	assert.Equal(t, [2]float64{297, 210}, cfg.Printing.StandardPageSize)
	assert.Equal(t, 3, cfg.Dispatch.MaxRetries)
	assert.Equal(t, ":8080", cfg.HTTPServer.Port)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadSeed(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
  seed:
    users:
      - id: u-1
        name: alice
        available_pages: 20
    files:
      - id: f-1
        name: thesis.pdf
        total_pages: 12
        mime_type: application/pdf
printing:
  standard_page_size: [148.5, 210]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Storage.Seed.Users, 1)
	assert.Equal(t, SeedUser{ID: "u-1", Name: "alice", AvailablePages: 20}, cfg.Storage.Seed.Users[0])
	require.Len(t, cfg.Storage.Seed.Files, 1)
	assert.Equal(t, 12, cfg.Storage.Seed.Files[0].TotalPages)
	assert.Equal(t, [2]float64{148.5, 210}, cfg.Printing.StandardPageSize)
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
postgres:
  db_name: printing
kafka:
  brokers: ["localhost:9092"]
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "printing", cfg.Postgres.DBName)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "printjob.events", cfg.Kafka.Topic)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver":    "storage:\n  driver: sqlite\n",
		"postgres no db":    "storage:\n  driver: postgres\n",
		"bad page size":     "storage:\n  driver: memory\nprinting:\n  standard_page_size: [0, 210]\n",
		"backoff too small": "storage:\n  driver: memory\ndispatch:\n  retry_delay: 2m\n  max_backoff: 1m\n",
		"bad log format":    "storage:\n  driver: memory\nlogger:\n  format: xml\n",
		"zero lease retry":  "storage:\n  driver: memory\ndispatch:\n  lease_retry: 0s\n",
		"seed user no id":   "storage:\n  driver: memory\n  seed:\n    users:\n      - name: alice\n",
		"seed empty file":   "storage:\n  driver: memory\n  seed:\n    files:\n      - id: f-1\n        total_pages: 0\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
