package mylog

import (
	"context"
	"fitagent/app/config"
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// TelegramKey marks a record for the telegram handler regardless of its level.
const TelegramKey = "telegram"

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	level := slog.LevelInfo
	if cfg.Log.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			return err
		}
	}

	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			forTelegram,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func forTelegram(_ context.Context, r slog.Record) bool {
	if r.Level >= slog.LevelError {
		return true
	}

	tagged := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == TelegramKey {
			tagged = true
			return false
		}

		return true
	})

	return tagged
}
