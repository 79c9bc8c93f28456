package main

import (
	"MediaVault/config"
	"MediaVault/internal/logger"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/internal/worker"
	"MediaVault/utils"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	config.InitConfig()
	if err := logger.Init(config.AppConfig.LogMode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.L().Sync()

	repo.InitDB()
	repo.InitRedis()
	storage.InitStorage()
	utils.InitCacheManager()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.NewSweeper(config.AppConfig.Retention).Start(ctx)
		return nil
	})
	g.Go(func() error {
		worker.RunLedgerReconciler(ctx, config.AppConfig.Retention.ReconcileEvery)
		return nil
	})
	g.Go(func() error {
		return worker.RunImportWorker(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.L().Fatal("worker stopped", "error", err)
	}
	logger.L().Info("worker stopped")
}
