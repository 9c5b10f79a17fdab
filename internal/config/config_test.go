package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, DatabaseDriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "smallplates.db", cfg.Database.DSN)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "/uploads", cfg.Storage.PublicBaseURL)
	assert.Equal(t, 60*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Empty(t, cfg.Agent.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SMALLPLATES_DATABASE_DRIVER", "Postgres")
	t.Setenv("SMALLPLATES_DATABASE_DSN", "host=db user=app")
	t.Setenv("SMALLPLATES_AGENT_BASE_URL", "http://agent.local/ ")
	t.Setenv("SMALLPLATES_QUEUE_WORKERS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DatabaseDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "host=db user=app", cfg.Database.DSN)
	assert.Equal(t, "http://agent.local", cfg.Agent.BaseURL)
	assert.Equal(t, 1, cfg.Queue.Workers)
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("database", func(t *testing.T) {
		t.Setenv("SMALLPLATES_DATABASE_DRIVER", "mysql")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("gcs without bucket", func(t *testing.T) {
		t.Setenv("SMALLPLATES_STORAGE_BACKEND", "gcs")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoadSubmissionPlacement(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staged_first", cfg.Submission.Placement)

	t.Setenv("SMALLPLATES_SUBMISSION_PLACEMENT", " Record_First ")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "record_first", cfg.Submission.Placement)

	t.Setenv("SMALLPLATES_SUBMISSION_PLACEMENT", "sideways")
	_, err = Load()
	assert.Error(t, err)
}
