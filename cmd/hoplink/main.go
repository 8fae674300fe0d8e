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

	"github.com/BuzzLyutic/hoplink/internal/cache"
	"github.com/BuzzLyutic/hoplink/internal/config"
	"github.com/BuzzLyutic/hoplink/internal/handler"
	"github.com/BuzzLyutic/hoplink/internal/refcode"
	"github.com/BuzzLyutic/hoplink/internal/service"
	"github.com/BuzzLyutic/hoplink/internal/storage"
	"github.com/BuzzLyutic/hoplink/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Установка логгера
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Starting hoplink",
		slog.String("address", cfg.ServerAddress),
		slog.String("storage", cfg.StorageType),
		slog.String("base_url", cfg.BaseURL),
		slog.Int("code_length", cfg.CodeLength),
	)

	// Трейсинг
	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	// Инициализация хранилища
	store, err := initStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	issuer, err := refcode.NewIssuer(cfg.CodeLength)
	if err != nil {
		return err
	}

	// Инициализация сервиса
	svc := service.New(store, issuer, service.Config{
		BaseURL: cfg.BaseURL,
	})

	// Инициализация хэндлера
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	h := handler.New(svc, logger)
	router := handler.NewRouter(h, logger, handler.RouterConfig{
		AllowOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	return runServer(server, logger)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	var store storage.Storage

	switch cfg.StorageType {
	case "postgres":
		logger.Info("connecting to PostgreSQL", slog.String("url", maskDSN(cfg.DatabaseURL)))
		pg, err := storage.NewPostgresStorage(storage.DefaultPostgresConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		store = pg
	case "memory":
		logger.Info("using in-memory storage")
		store = storage.NewMemoryStorage()
	default:
		return nil, errors.New("unknown storage type")
	}

	if cfg.RedisAddr == "" {
		return store, nil
	}

	logger.Info("enabling Redis message cache", slog.String("addr", cfg.RedisAddr), slog.Duration("ttl", cfg.CacheTTL))
	client, err := cache.NewClient(context.Background(), cfg.RedisAddr)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &cachedStorage{
		MessageCache: cache.Wrap(store, client, cfg.CacheTTL, logger),
		closeClient:  client.Close,
	}, nil
}

// cachedStorage закрывает клиента Redis вместе с хранилищем
type cachedStorage struct {
	*cache.MessageCache
	closeClient func() error
}

func (s *cachedStorage) Close() error {
	return errors.Join(s.MessageCache.Close(), s.closeClient())
}

func runServer(server *http.Server, logger *slog.Logger) error {
	// Создаем канал для получения сигналов
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Канал для получения ошибок сервера
	serverErr := make(chan error, 1)

	// Старт сервера
	go func() {
		logger.Info("server listening", slog.String("address", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	// Ожидание завершения работы или ошибки
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Ожидание дополнительно 10 секунд для завершения обрабатываемых запросов
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			// Насильное завершение работы
			server.Close()
			return err
		}
	}
	logger.Info("server stopped")
	return nil
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return "(empty)"
	}
	return "(set)"
}
