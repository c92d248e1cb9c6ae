package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"voicexpense/internal/amqp"
	"voicexpense/internal/assistant"
	"voicexpense/internal/cli"
	applog "voicexpense/internal/log"
	"voicexpense/internal/parser"
	"voicexpense/internal/rollup"
	"voicexpense/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentAssistant)

	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore := cli.InitStore(logger, cfg)
	defer closeStore()

	var publisher services.EventPublisher
	if amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue); err != nil {
		logger.Warn("AMQP unavailable, rollup notifications disabled", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	svc := services.NewExpenseService(store, parser.New(), publisher)

	userID := cfg.DefaultUserID
	if len(os.Args) > 1 {
		userID = os.Args[1]
	}

	a := assistant.New(
		assistant.NewConsoleListener(os.Stdin),
		assistant.NewConsoleSpeaker(os.Stdout),
		svc,
		rollup.NewAggregator(store),
		userID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting voicexpense assistant", "user_id", userID, "backend", cfg.DataBackend)

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Assistant session failed", "error", err)
		os.Exit(1)
	}
}
