package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/infowatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "infowatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
listen = "127.0.0.1:9000"
poll_interval = "30s"
proxy_url = "https://allorigins.hexlet.app/get"
lenient_items = true
feeds = ["https://ru.hexlet.io/lessons.rss"]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "https://allorigins.hexlet.app/get", cfg.ProxyURL)
	assert.True(t, cfg.LenientItems)
	assert.Equal(t, []string{"https://ru.hexlet.io/lessons.rss"}, cfg.Feeds)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "syntax", content: `listen = `},
		{name: "bad duration", content: `poll_interval = "soon"`},
		{name: "zero interval", content: `poll_interval = "0s"`},
		{name: "bad level", content: `log_level = "loud"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyLogging(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"
	assert.NoError(t, cfg.ApplyLogging())

	cfg.LogLevel = "nope"
	assert.Error(t, cfg.ApplyLogging())
}
