package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadFileDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultListen, cfg.Server.Listen)
	assert.Equal(t, defaultSessionTTL, cfg.Server.SessionTTL)
	assert.Equal(t, defaultCleanupInterval, cfg.Server.CleanupInterval)
	assert.Equal(t, defaultMaxUploadBytes, cfg.Server.MaxUploadBytes)
	assert.Equal(t, defaultModel, cfg.OpenAI.Chat.Model)
	assert.Equal(t, defaultBaseURL, cfg.OpenAI.Vision.BaseURL)
	assert.Empty(t, cfg.OpenAI.Chat.Token)
	assert.Empty(t, cfg.Storage.Path)
}

func TestLoadFileOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	path := writeConfig(t, `
server:
  listen: "127.0.0.1:9000"
  session_ttl: 30m
openai:
  chat:
    model: gpt-4o
    token: sk-file
    temperature: 0.4
  vision:
    timeout: 15s
storage:
  path: data/meals.db
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Chat.Model)
	assert.Equal(t, "sk-file", cfg.OpenAI.Chat.Token)
	assert.InDelta(t, 0.4, cfg.OpenAI.Chat.Temperature, 1e-9)
	assert.Equal(t, "sk-env", cfg.OpenAI.Vision.Token)
	assert.Equal(t, 15*time.Second, cfg.OpenAI.Vision.Timeout)
	assert.Equal(t, "data/meals.db", cfg.Storage.Path)
}

func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [unclosed"},
		{"bad base url", "openai:\n  chat:\n    base_url: not a url\n"},
		{"temperature out of range", "openai:\n  vision:\n    temperature: 3\n"},
		{"negative max tokens", "openai:\n  chat:\n    max_tokens: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
