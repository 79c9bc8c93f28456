package main

import (
	"MediaVault/config"
	"MediaVault/internal/logger"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/router"
	"MediaVault/utils"
	"log"
)

// main initializes services and starts the HTTP server.
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

	r := router.InitRouter()
	logger.L().Info("http server listening", "addr", config.AppConfig.HTTPAddr)
	if err := r.Run(config.AppConfig.HTTPAddr); err != nil {
		logger.L().Fatal("http server stopped", "error", err)
	}
}
