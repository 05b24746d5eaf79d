package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"igscout/internal/api"
	"igscout/internal/apify"
	"igscout/internal/config"
	"igscout/internal/database"
	"igscout/internal/repository"
	"igscout/internal/service"
	"igscout/internal/vision"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
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

	// Migrations are owned by the worker; the API only connects.
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	sugar.Info("Database connected successfully")

	jobRepo := repository.NewJobRepository(db.SQL)
	clientRepo := repository.NewClientRepository(db.Gorm)
	pageRepo := repository.NewPageRepository(db.Gorm)

	scraper := apify.NewClient(cfg.ApifyToken)
	visionClient := vision.NewClient(cfg.OpenAIAPIKey)

	scheduler := service.NewScheduler(jobRepo, pageRepo, sugar)
	categorizationService := service.NewCategorizationService(pageRepo, jobRepo, scraper, visionClient, sugar)

	server := api.NewServer(jobRepo, clientRepo, scheduler, categorizationService, sugar)

	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: server.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		sugar.Infof("API listening on %s", cfg.APIAddr)
		errChan <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		sugar.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Errorf("Server shutdown error: %v", err)
		}
		sugar.Info("Application stopped")
		return nil

	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
