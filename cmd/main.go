package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/solidjuls/twilight-struggle-backend/config"
	"github.com/solidjuls/twilight-struggle-backend/db"
	"github.com/solidjuls/twilight-struggle-backend/handlers"
	"github.com/solidjuls/twilight-struggle-backend/live"
	"github.com/solidjuls/twilight-struggle-backend/repositories"
	api "github.com/solidjuls/twilight-struggle-backend/routes"
	"github.com/solidjuls/twilight-struggle-backend/services"
	"github.com/solidjuls/twilight-struggle-backend/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2), если настроен
	var evidenceUploader storage.FileUploader
	if cfg.R2Configured() {
		evidenceUploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 credentials not set, evidence uploads disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	gameRepo := repositories.NewPostgresGameResultRepository(dbConn)
	snapshotRepo := repositories.NewPostgresRatingSnapshotRepository(dbConn)
	auditRepo := repositories.NewPostgresGameAuditRepository(dbConn)
	scheduleRepo := repositories.NewPostgresScheduleRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	txManager := repositories.NewSQLTxManager(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	ratingService := services.NewRatingService(snapshotRepo)
	gameService := services.NewGameService(
		txManager,
		gameRepo,
		snapshotRepo,
		auditRepo,
		scheduleRepo,
		userRepo,
		ratingService,
		wsHub,
		logger,
		cfg.RecomputeTimeout,
	)
	standingsService := services.NewStandingsService(standingRepo, gameRepo, userRepo)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	gameHandler := handlers.NewGameHandler(gameService, evidenceUploader)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	standingsHandler := handlers.NewStandingsHandler(standingsService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		gameHandler,
		ratingHandler,
		standingsHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера. WriteTimeout has to outlast a
	// full recompute cascade or the response gets cut off mid-flight.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RecomputeTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
