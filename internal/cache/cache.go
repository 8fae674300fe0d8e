// Пакет cache кэширует неизменяемые сообщения в Redis поверх любого хранилища.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BuzzLyutic/hoplink/internal/metrics"
	"github.com/BuzzLyutic/hoplink/internal/storage"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "hoplink:message:"
)

// Client минимальный набор команд Redis, нужный кэшу
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// MessageCache оборачивает storage.Storage и кэширует GetMessage.
// Остальные методы уходят в хранилище без изменений.
type MessageCache struct {
	storage.Storage
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

// Wrap возвращает хранилище с кэшем сообщений
func Wrap(store storage.Storage, client Client, ttl time.Duration, logger *slog.Logger) *MessageCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageCache{
		Storage: store,
		client:  client,
		ttl:     ttl,
		logger:  logger,
	}
}

// NewClient создает клиента Redis и проверяет соединение
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

type cachedMessage struct {
	ID          string    `json:"id"`
	OriginURL   string    `json:"origin_url"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateMessage сохраняет сообщение и сразу кладет его в кэш
func (c *MessageCache) CreateMessage(ctx context.Context, m storage.Message) (*storage.Message, error) {
	created, err := c.Storage.CreateMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	c.set(ctx, created)
	return created, nil
}

// GetMessage сначала ищет сообщение в кэше.
// Ошибки Redis не прерывают запрос: чтение уходит в хранилище.
func (c *MessageCache) GetMessage(ctx context.Context, id string) (*storage.Message, error) {
	val, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	switch {
	case err == nil:
		var cm cachedMessage
		if jsonErr := json.Unmarshal(val, &cm); jsonErr == nil {
			metrics.CacheRequests.WithLabelValues("hit").Inc()
			return &storage.Message{
				ID:          cm.ID,
				OriginURL:   cm.OriginURL,
				Title:       cm.Title,
				Description: cm.Description,
				CreatedAt:   cm.CreatedAt,
			}, nil
		}
		metrics.CacheRequests.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("message cache read failed", slog.String("id", id), slog.Any("error", err))
	}

	m, err := c.Storage.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, m)
	return m, nil
}

func (c *MessageCache) set(ctx context.Context, m *storage.Message) {
	data, err := json.Marshal(cachedMessage{
		ID:          m.ID,
		OriginURL:   m.OriginURL,
		Title:       m.Title,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+m.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("message cache write failed", slog.String("id", m.ID), slog.Any("error", err))
	}
}
