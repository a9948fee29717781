package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MVictoriaDoll/NutriChoice/cmd/config"
	migration "github.com/MVictoriaDoll/NutriChoice/cmd/database/migrate"
	"github.com/MVictoriaDoll/NutriChoice/internal/utils"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	utils.LoadConfig()

	db, err := config.ConnectDB()
	if err != nil {
		logger.Fatal("database initialization error", zap.Error(err))
	}

	if err := migration.Migrate(db); err != nil {
		logger.Fatal("database migration error", zap.Error(err))
	}

	app, err := config.NewApp(db, logger)
	if err != nil {
		logger.Fatal("application setup error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address := utils.GetConfig("APP_ADDRESS")
	if address == "" {
		address = ":8080"
	}

	go func() {
		logger.Info("starting server", zap.String("address", address))
		if err := app.Listen(address); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}
