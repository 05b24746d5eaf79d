package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"igscout/internal/apify"
	"igscout/internal/config"
	"igscout/internal/database"
	"igscout/internal/repository"
	"igscout/internal/service"
	"igscout/internal/vision"
	"igscout/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	sugar.Info("Database connected successfully")

	// Run migrations
	sugar.Info("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	sugar.Info("Migrations completed successfully")

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db.SQL)
	clientRepo := repository.NewClientRepository(db.Gorm)
	pageRepo := repository.NewPageRepository(db.Gorm)

	// Initialize provider clients
	scraper := apify.NewClient(cfg.ApifyToken)
	visionClient := vision.NewClient(cfg.OpenAIAPIKey)

	// Initialize processors
	followingProcessor := service.NewFollowingProcessor(clientRepo, pageRepo, scraper, sugar)
	profileProcessor := service.NewProfileProcessor(pageRepo, scraper, sugar)
	categorizationService := service.NewCategorizationService(pageRepo, jobRepo, scraper, visionClient, sugar)

	// Initialize watcher
	w := watcher.New(cfg, jobRepo, followingProcessor, profileProcessor, categorizationService, sugar)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case <-sigChan:
		sugar.Info("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			sugar.Warn("Shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				sugar.Errorf("Watcher error: %v", err)
			}
		}

		sugar.Info("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
