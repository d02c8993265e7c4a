package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/shenikar/drive_issue_log/internal/config"
	v1 "github.com/shenikar/drive_issue_log/internal/handler/http/v1"
	"github.com/shenikar/drive_issue_log/internal/live"
	"github.com/shenikar/drive_issue_log/internal/repository"
	"github.com/shenikar/drive_issue_log/internal/service"
	"github.com/shenikar/drive_issue_log/internal/tracker"
	"github.com/shenikar/drive_issue_log/internal/webhook"
	"github.com/shenikar/drive_issue_log/pkg/logger"
	"github.com/shenikar/drive_issue_log/pkg/postgres"
	redisclient "github.com/shenikar/drive_issue_log/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/drive_issue_log/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const migrationsSource = "file://migrations"

func newMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(migrationsSource, migrationURL)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

// @title Drive Issue Log API
// @version 1.0
// @description Geotagged issue log for autonomous-driving test drives.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}

	err = m.Up()
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		log.Info("Database migrations applied successfully")
		return nil
	}
	if !cfg.DevMode {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// В режиме разработки несовместимую схему пересоздаем с нуля
	log.WithError(err).Warn("Migration failed in dev mode, dropping and recreating the schema")
	if err := m.Drop(); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	m, err = newMigrate(cfg)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations after drop: %w", err)
	}

	log.Warn("Database schema recreated, all issues were deleted")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Издатель событий и воркер вебхуков
	publisher := webhook.NewRedisPublisher(redisClient)
	webhookWorker := webhook.NewWorker(redisClient, log, cfg)
	webhookWorker.Start(ctx)

	// Инициализация репозиториев
	issueRepo := repository.NewIssueRepository(dbpool, redisClient, cfg.IssueCacheTTL)
	prefsRepo := repository.NewPreferencesRepository(redisClient)
	sessionRepo := repository.NewSessionRepository(redisClient)

	// Инициализация сервисов
	services := v1.Services{
		Issues:   service.NewIssueService(issueRepo, prefsRepo, publisher, log),
		Backup:   service.NewBackupService(issueRepo, log, cfg.BackupDir),
		Settings: service.NewSettingsService(prefsRepo, issueRepo, log, cfg.DevMode),
	}

	// Трекер местоположения: отметки приходят от устройства через HTTP
	feed := tracker.NewDeviceFeed(cfg.TrackerFeedBuffer)
	locationTracker := tracker.New(feed, sessionRepo, prefsRepo, log, tracker.Options{
		PermissionTimeout: cfg.TrackerPermissionTimeout,
		StationaryRadius:  cfg.TrackerStationaryRadius,
		MaxRetries:        cfg.TrackerFeedMaxRetries,
		BaseDelay:         cfg.TrackerFeedBaseDelay,
	})

	// Живая трансляция местоположения по WebSocket
	hub := live.NewHub(log)
	go hub.Run(ctx)
	updates, unsubscribe := locationTracker.Subscribe()
	defer unsubscribe()
	go hub.Pump(ctx, updates)

	// Восстанавливаем состояние трекера после перезапуска
	if err := locationTracker.Resume(ctx); err != nil {
		log.WithError(err).Warn("Failed to restore tracking state")
	}

	// Инициализация хэндлеров
	handler := v1.NewHandler(services, locationTracker, feed, hub, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	if len(cfg.APIKeys) > 0 {
		api.Use(v1.APIKeyAuthMiddleware(cfg.APIKeys, log))
	} else {
		log.Warn("API_KEYS is empty, API is served without authentication")
	}
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Флаги трекера не сбрасываем: после перезапуска поток продолжится
	if err := locationTracker.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Tracker did not stop in time")
	}
	cancel()

	log.Info("Server gracefully stopped")
}
