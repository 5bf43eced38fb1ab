package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KennyKvn001/PipelineSummatives/config"
	"github.com/KennyKvn001/PipelineSummatives/handlers"
	"github.com/KennyKvn001/PipelineSummatives/middleware"
	"github.com/KennyKvn001/PipelineSummatives/predictor"
	"github.com/KennyKvn001/PipelineSummatives/repository"
	"github.com/KennyKvn001/PipelineSummatives/retrain"
	"github.com/KennyKvn001/PipelineSummatives/storage"
)

func main() {
	port := flag.String("port", getEnvOrDefault("PORT", "8080"), "Server port")
	flag.Parse()

	log.Println("Starting Student Dropout Prediction Backend")

	// Initialize configuration (opens the database)
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	defer cfg.Close()

	// Initialize artifact storage
	artifacts, err := storage.NewMinIOClient(storage.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.ArtifactBucket,
		Object:    cfg.ArtifactObject,
	})
	if err != nil {
		log.Fatalf("Failed to initialize artifact storage: %v", err)
	}

	// Initialize the predictor and restore the last trained model if any.
	// A missing artifact is expected on first boot: the service stays up and
	// inference fails cleanly until a model is trained.
	pred := predictor.New(artifacts, cfg)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pred.Load(loadCtx); err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			log.Println("Warning: no trained model found")
		} else {
			log.Printf("Warning: failed to load model artifact: %v", err)
		}
	}
	loadCancel()

	repo := repository.NewRepository(cfg.DB)

	// A crash mid-run leaves the status row in_progress, which would reject
	// every future retrain trigger. Reset it before the router comes up.
	recoverCtx, recoverCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := repo.RecoverStaleRun(recoverCtx); err != nil {
		log.Printf("Warning: failed to recover stale retraining status: %v", err)
	}
	recoverCancel()

	orchestrator := retrain.New(repo, pred)
	handler := handlers.NewHandler(cfg, repo, pred, orchestrator)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	router.POST("/predict", handler.Predict)
	router.POST("/predict/user", handler.PredictUser)
	router.POST("/upload-data", handler.UploadData)
	router.POST("/retrain", handler.Retrain)
	router.GET("/retraining-status", handler.RetrainingStatus)
	router.GET("/training-metrics", handler.TrainingMetrics)
	router.GET("/health", handler.Health)
	router.GET("/health/db", handler.HealthDB)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Let an in-flight retraining run finish before closing connections
	orchestrator.Wait()
	cfg.Close()
	log.Println("Server stopped gracefully")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
