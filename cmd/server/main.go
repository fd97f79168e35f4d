package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/physiotrack/internal/api"
	"alcyxob/physiotrack/internal/app"
	"alcyxob/physiotrack/internal/config"
	"alcyxob/physiotrack/internal/logging"
	"alcyxob/physiotrack/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title PhysioTrack API
// @version 1.0
// @description Exercise prescriptions keyed by patient barcode.
// @BasePath /api/v1
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting PhysioTrack server...", zap.String("driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Record store, snapshot cache, sheet storage ---
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Could not initialize application", zap.Error(err))
	}
	defer application.Close()

	// --- Background Sync ---
	sub, err := application.Coordinator.StartBackgroundSync(ctx)
	if err != nil {
		// Lookups fall back to point reads until the store answers.
		log.Error("Background sync did not start", zap.Error(err))
	} else {
		defer sub.Stop()
	}

	// --- Initialize Services ---
	prescriptionService := service.NewPrescriptionService(application.Coordinator, application.Catalog, log)
	sheetService := service.NewSheetService(application.Coordinator, application.Catalog, application.Files, cfg.S3.URLExpiry, log)

	// --- Initialize Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, log, application.Catalog, application.Coordinator, prescriptionService, sheetService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting.")
}
