package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/config"
	"github.com/edutech-platform/quiz-service/internal/events"
	"github.com/edutech-platform/quiz-service/internal/handlers"
	"github.com/edutech-platform/quiz-service/internal/repositories/casdoor"
	"github.com/edutech-platform/quiz-service/internal/repositories/postgres"
	"github.com/edutech-platform/quiz-service/internal/services"
	"github.com/edutech-platform/quiz-service/internal/utils"
	"github.com/edutech-platform/quiz-service/internal/validator"
	"github.com/edutech-platform/quiz-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		slogLogger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		// The service degrades gracefully without cache
		slogLogger.Warn("Redis unavailable, running without cache", "error", err)
		redisClient = nil
	}

	var publisher events.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, slogLogger)
		if err != nil {
			slogLogger.Error("Failed to connect to Kafka", "error", err)
			os.Exit(1)
		}
		publisher = kafkaPublisher
	} else {
		slogLogger.Warn("No Kafka brokers configured, events will not leave the process")
		publisher = events.NewMockEventPublisher(slogLogger)
	}

	casdoorConfig := casdoor.CasdoorConfig{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Certificate,
		OrganizationName: cfg.Casdoor.Organization,
		ApplicationName:  cfg.Casdoor.Application,
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:            db,
		RedisClient:   redisClient,
		CasdoorConfig: casdoorConfig,
	})
	if err := repoManager.Initialize(); err != nil {
		slogLogger.Error("Failed to initialize repositories", "error", err)
		os.Exit(1)
	}
	repo := repoManager.GetRepository()

	v := validator.New()

	serviceManager := services.NewDefaultServiceManager(db, repo, slogLogger, v, cfg, publisher)
	ctx := context.Background()
	if err := serviceManager.Initialize(ctx); err != nil {
		slogLogger.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.SetupMiddleware(router, logger)

	handlerManager := handlers.NewHandlerManager(serviceManager, v, logger, casdoorConfig, repoManager, repo.User())
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slogLogger.Info("Starting quiz service", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogLogger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slogLogger.Error("Server shutdown failed", "error", err)
	}
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		slogLogger.Error("Service shutdown failed", "error", err)
	}
	if err := repo.Close(); err != nil {
		slogLogger.Error("Repository close failed", "error", err)
	}

	slogLogger.Info("Shutdown complete")
}
