package mylog

import (
	"context"
	"fitagent/app/config"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForTelegram(t *testing.T) {
	errRecord := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	assert.True(t, forTelegram(context.Background(), errRecord))

	plain := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	plain.AddAttrs(slog.String("session", "abc"))
	assert.False(t, forTelegram(context.Background(), plain))

	tagged := slog.NewRecord(time.Now(), slog.LevelInfo, "meal logged", 0)
	tagged.AddAttrs(slog.Bool(TelegramKey, true))
	assert.True(t, forTelegram(context.Background(), tagged))
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	var cfg config.Config
	cfg.Log.Level = "loud"

	assert.Error(t, Init(&cfg))
	assert.NoError(t, Init(&config.Config{}))
}
