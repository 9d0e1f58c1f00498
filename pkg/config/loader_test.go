package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ingestorYAML = `
transport: sqs
batch_size: 5
wait_time: 20s
reconcile_interval: 1m
pg:
  host: ${TEST_PG_HOST}
  port: 5432
  user: postgres
  password: ${TEST_PG_PASSWORD}
  database: videos
sqs:
  region: us-east-1
  queue_url: http://localhost:4566/000000000000/uploads
redis:
  addr: localhost:6379
queue:
  name: transcode
  max_attempts: 5
  backoff_base: 5s
  backoff_factor: 2
`

func writeYAML(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	t.Run("expand env placeholders", func(t *testing.T) {
		t.Setenv("TEST_PG_HOST", "db.internal")
		t.Setenv("TEST_PG_PASSWORD", "s3cret")
		dir := writeYAML(t, "ingestor", ingestorYAML)

		cfg, err := Load[Ingestor]("ingestor", dir)
		require.NoError(t, err)

		assert.Equal(t, "sqs", cfg.Transport)
		assert.Equal(t, 5, cfg.BatchSize)
		assert.Equal(t, 20*time.Second, cfg.WaitTime)
		assert.Equal(t, time.Minute, cfg.ReconcileInterval)
		assert.Equal(t, "db.internal", cfg.PostgreSQL.Host)
		assert.Equal(t, "s3cret", cfg.PostgreSQL.Password)
		assert.Equal(t, 5*time.Second, cfg.Queue.BackoffBase)
		assert.Equal(t, 2.0, cfg.Queue.BackoffFactor)
	})

	t.Run("reject unknown transport", func(t *testing.T) {
		t.Setenv("TEST_PG_HOST", "db.internal")
		dir := writeYAML(t, "ingestor", "transport: kinesis\npg:\n  host: ${TEST_PG_HOST}\n  port: 5432\n  database: videos\n")

		_, err := Load[Ingestor]("ingestor", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Transport")
	})

	t.Run("missing database host", func(t *testing.T) {
		t.Setenv("TEST_PG_HOST", "")
		dir := writeYAML(t, "ingestor", ingestorYAML)

		_, err := Load[Ingestor]("ingestor", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Host")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load[Ingestor]("ingestor", t.TempDir())
		assert.Error(t, err)
	})
}

func TestGetPath(t *testing.T) {
	_, err := GetPath("definitely-not-here.env", 2)
	assert.Error(t, err)
}
