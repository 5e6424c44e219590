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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/PG-9-9/Musical-Video-Generator/config"
	"github.com/PG-9-9/Musical-Video-Generator/internal/database"
	"github.com/PG-9-9/Musical-Video-Generator/internal/handlers"
	"github.com/PG-9-9/Musical-Video-Generator/internal/services"
	"github.com/PG-9-9/Musical-Video-Generator/internal/utils"
	"github.com/PG-9-9/Musical-Video-Generator/internal/worker"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/logger"
)

func main() {
	fmt.Println("Musical Video Generator")

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"port":        cfg.ServerPort,
	}).Info("Starting server")

	if err := utils.EnsureDataDirectories(cfg.StoragePath); err != nil {
		logrus.Fatalf("Failed to create data directories: %v", err)
	}

	if err := database.InitDB(cfg.DBPath); err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	jobRepo := database.NewJobRepository(database.DB)
	broadcaster := services.NewProgressBroadcaster()

	jobWorker := worker.NewWorker(jobRepo, broadcaster, cfg, time.Duration(cfg.PollInterval)*time.Second)
	go jobWorker.Start()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(jobRepo, broadcaster)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logrus.Info("Shutting down gracefully...")
	jobWorker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown did not complete")
	}

	logrus.Info("Shutdown complete")
}
