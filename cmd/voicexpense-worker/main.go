package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"voicexpense/internal/amqp"
	"voicexpense/internal/cli"
	applog "voicexpense/internal/log"
	"voicexpense/internal/rollup"
	"voicexpense/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting voicexpense-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore := cli.InitStore(logger, cfg)
	defer closeStore()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	rollupWorker := worker.NewRollupWorker(rollup.NewAggregator(store), store, cfg.RollupBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on anything that accumulated while the worker was down.
	if _, err := rollupWorker.ProcessPending(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionLogged(ctx, func(msg *amqp.TransactionLoggedMessage) error {
			return rollupWorker.HandleTransactionLogged(ctx, msg)
		})
	})

	g.Go(func() error {
		return rollupWorker.RunReconcileLoop(ctx, cfg.RollupInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
