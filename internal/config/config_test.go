package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	path := writeConfig(t, `
database:
  host: localhost
  port: 5432
  user: app
  password: pw
  database: tableflow
rabbitmq:
  host: localhost
  port: 5672
  user: guest
  password: guest
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:pw@localhost:5432/tableflow?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "/", cfg.Rabbit.VHost, "vhost defaults to /")
	assert.Equal(t, 3000, cfg.HTTP.Port, "http port has a default")
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := config.Load(writeConfig(t, "database: {port: 5432}\nrabbitmq: {port: 5672}\n"))
	assert.Error(t, err, "hosts are mandatory")

	_, err = config.Load(writeConfig(t, "{not yaml"))
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
