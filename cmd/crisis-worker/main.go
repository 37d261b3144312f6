package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/havenmind/wellness-ai-platform/internal/config"
	crisisworker "github.com/havenmind/wellness-ai-platform/internal/worker/crisis"
	"github.com/havenmind/wellness-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting havenmind crisis worker", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down crisis worker...")
		cancel()
	}()

	if err := crisisworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("crisis worker failed", "error", err)
		os.Exit(1)
	}
}
