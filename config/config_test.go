package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/syssam/strata/config"
	"github.com/syssam/strata/updater"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
schema:
  base_url: https://schema.example.com
  mode: poll
  ttl: 30s
server:
  addr: ":9090"
log:
  level: debug
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://schema.example.com", cfg.Schema.BaseURL)
	assert.Equal(t, "poll", cfg.Schema.Mode)
	assert.Equal(t, 30*time.Second, cfg.Schema.TTL)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout, "default")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "strata", cfg.Metrics.Namespace)

	opts, err := cfg.SDKOptions(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1), "debug enabled")
}

func TestLoad_Env(t *testing.T) {
	path := writeConfig(t, "schema:\n  base_url: https://a.example.com\n")
	t.Setenv("STRATA_SCHEMA_BASE_URL", "https://b.example.com")
	t.Setenv("STRATA_SCHEMA_TTL", "2m")
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://b.example.com", cfg.Schema.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Schema.TTL)
	assert.Equal(t, updater.Stale.String(), cfg.Schema.Mode)
}

func TestLoad_Flags(t *testing.T) {
	path := writeConfig(t, "schema:\n  base_url: https://a.example.com\n")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dir", "", "")
	flags.String("url", "", "")
	flags.String("addr", "", "")
	require.NoError(t, flags.Parse([]string{"--dir", "./schema", "--url", "", "--addr", ":7070"}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "./schema", cfg.Schema.Directory)
	assert.Empty(t, cfg.Schema.BaseURL, "a set flag wins even when empty")
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "read config file")

	_, err = config.Load(writeConfig(t, "schema: [broken"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Schema: config.SchemaConfig{BaseURL: "https://schema.example.com", Mode: "stale", TTL: time.Minute},
			Server: config.ServerConfig{Addr: "localhost:8080", ShutdownTimeout: time.Second},
			Log:    config.LogConfig{Level: "info"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"mode", func(c *config.Config) { c.Schema.Mode = "push" }, "schema.mode must be one of: stale poll static"},
		{"url", func(c *config.Config) { c.Schema.BaseURL = "not a url" }, "schema.base_url must be a valid URL"},
		{"ttl", func(c *config.Config) { c.Schema.TTL = 0 }, "schema.ttl must be positive"},
		{"addr", func(c *config.Config) { c.Server.Addr = "" }, "server.addr is required"},
		{"level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level must be one of"},
		{"namespace", func(c *config.Config) { c.Metrics.Enabled = true }, "metrics.namespace is required"},
		{"no source", func(c *config.Config) { c.Schema.BaseURL = "" }, "one of schema.base_url or schema.directory is required"},
		{"two sources", func(c *config.Config) { c.Schema.Directory = "schema" }, "mutually exclusive"},
		{"watch", func(c *config.Config) { c.Schema.Watch = true }, "schema.watch requires schema.directory"},
		{"static", func(c *config.Config) { c.Schema.Mode = "static" }, "static mode requires schema.directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
