package main

import (
	"context"
	"fitagent/app/client/llm"
	"fitagent/app/config"
	"fitagent/app/server"
	"fitagent/app/service/conversation"
	"fitagent/app/service/meallog"
	"fitagent/app/service/registry"
	"fitagent/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, llm.New)
	do.Provide(di, meallog.New)
	do.Provide(di, conversation.New)
	do.Provide(di, registry.New)
	do.Provide(di, server.New)

	httpServer, err := do.Invoke[*server.Server](di)
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}
	registrySvc := do.MustInvoke[*registry.Service](di)

	slog.Info("Service started",
		"listen", cfg.Server.Listen,
		"chat_model", cfg.OpenAI.Chat.Model,
		"vision_model", cfg.OpenAI.Vision.Model,
		"meal_log", cfg.Storage.Path != "",
		mylog.TelegramKey, true,
	)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	group, groupCtx := errgroup.WithContext(appCtx)
	group.Go(func() error {
		return httpServer.Run(groupCtx)
	})
	group.Go(func() error {
		registrySvc.RunCleanupLoop(groupCtx, cfg.Server.CleanupInterval)
		return nil
	})

	if err = group.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}
}
