// Пакет config предоставляет конфигурацию для приложения.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BuzzLyutic/hoplink/internal/refcode"
)

// Config содержит конфиг приложения
type Config struct {
	// Настройки сервера
	ServerAddress string
	BaseURL       string
	GinMode       string
	CORSOrigins   []string

	// Настройки хранилища
	StorageType string // либо в памяти приложения, либо Postgres
	DatabaseURL string

	// Кэш сообщений в Redis; пустой адрес выключает кэш
	RedisAddr string
	CacheTTL  time.Duration

	// Настройки кодов
	CodeLength int

	// Логирование и трейсинг
	LogLevel     string
	OTLPEndpoint string
	ServiceName  string
}

// Load загружает конфиг из .env, флагов и переменных окружения
func Load() (*Config, error) {
	return load(flag.CommandLine, os.Args[1:])
}

func load(fs *flag.FlagSet, args []string) (*Config, error) {
	// .env необязателен, уже заданные переменные окружения не перезаписываются
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	var corsOrigins string

	// Определение флагов
	fs.StringVar(&cfg.ServerAddress, "address", ":8080", "Server address (HOST:PORT)")
	fs.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "Base URL for share links")
	fs.StringVar(&cfg.GinMode, "gin-mode", "release", "Gin mode: debug, release, test")
	fs.StringVar(&corsOrigins, "cors-origins", "*", "Comma-separated list of allowed CORS origins")
	fs.StringVar(&cfg.StorageType, "storage", "memory", "Storage type: memory or postgres")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for message cache (empty = disabled)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", 24*time.Hour, "Message cache TTL")
	fs.IntVar(&cfg.CodeLength, "code-length", refcode.DefaultLength, "Length of issued ref codes")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint (empty = tracing disabled)")
	fs.StringVar(&cfg.ServiceName, "service-name", "hoplink", "Service name reported to tracing")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Переопределение переменными окружения
	if env := os.Getenv("SERVER_ADDRESS"); env != "" {
		cfg.ServerAddress = env
	}
	if env := os.Getenv("BASE_URL"); env != "" {
		cfg.BaseURL = env
	}
	if env := os.Getenv("GIN_MODE"); env != "" {
		cfg.GinMode = env
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		corsOrigins = env
	}
	if env := os.Getenv("STORAGE_TYPE"); env != "" {
		cfg.StorageType = env
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		cfg.DatabaseURL = env
	}
	if env := os.Getenv("REDIS_ADDR"); env != "" {
		cfg.RedisAddr = env
	}
	if env := os.Getenv("CACHE_TTL"); env != "" {
		ttl, err := time.ParseDuration(env)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	if env := os.Getenv("CODE_LENGTH"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return nil, fmt.Errorf("invalid CODE_LENGTH: %w", err)
		}
		cfg.CodeLength = n
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		cfg.LogLevel = env
	}
	if env := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); env != "" {
		cfg.OTLPEndpoint = env
	}
	if env := os.Getenv("SERVICE_NAME"); env != "" {
		cfg.ServiceName = env
	}

	cfg.CORSOrigins = splitList(corsOrigins)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.StorageType != "memory" && c.StorageType != "postgres" {
		return fmt.Errorf("invalid storage type: %s (must be 'memory' or 'postgres')", c.StorageType)
	}

	if c.StorageType == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("database-url is required when storage=postgres")
	}

	if c.CodeLength < refcode.MinLength || c.CodeLength > refcode.MaxLength {
		return fmt.Errorf("invalid code length: %d (must be %d..%d)", c.CodeLength, refcode.MinLength, refcode.MaxLength)
	}

	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("cache-ttl must be positive when redis is enabled")
	}

	switch c.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %s", c.GinMode)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
