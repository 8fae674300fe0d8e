package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/hoplink/internal/storage"
)

// fakeClient хранит значения в памяти и отдает результаты в формате go-redis
type fakeClient struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
	failSet error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSet != nil {
		return redis.NewStatusResult("", f.failSet)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

// countingStore считает обращения к GetMessage
type countingStore struct {
	*storage.MemoryStorage
	gets int
}

func (s *countingStore) GetMessage(ctx context.Context, id string) (*storage.Message, error) {
	s.gets++
	return s.MemoryStorage.GetMessage(ctx, id)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMessageCache_GetMessage(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStorage: storage.NewMemoryStorage()}
	m, err := store.CreateMessage(ctx, storage.Message{OriginURL: "https://example.com/cached", Title: "Cached"})
	require.NoError(t, err)

	client := newFakeClient()
	c := Wrap(store, client, time.Hour, quietLogger())

	first, err := c.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.OriginURL, first.OriginURL)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, time.Hour, client.ttls[keyPrefix+m.ID])

	second, err := c.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets, "second read should be served from cache")
	assert.Equal(t, "Cached", second.Title)
	assert.Equal(t, m.ID, second.ID)
}

func TestMessageCache_CreateMessageWarmsCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStorage: storage.NewMemoryStorage()}
	client := newFakeClient()
	c := Wrap(store, client, 0, quietLogger())

	m, err := c.CreateMessage(ctx, storage.Message{OriginURL: "https://example.com/warm"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, client.ttls[keyPrefix+m.ID])

	_, err = c.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.gets)
}

func TestMessageCache_NotFound(t *testing.T) {
	c := Wrap(storage.NewMemoryStorage(), newFakeClient(), time.Hour, quietLogger())

	_, err := c.GetMessage(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMessageCache_RedisFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStorage: storage.NewMemoryStorage()}
	m, _ := store.CreateMessage(ctx, storage.Message{OriginURL: "https://example.com/fallback"})

	client := newFakeClient()
	client.failGet = errors.New("connection refused")
	client.failSet = errors.New("connection refused")
	c := Wrap(store, client, time.Hour, quietLogger())

	got, err := c.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.OriginURL, got.OriginURL)
	assert.Equal(t, 1, store.gets)
}

func TestMessageCache_CorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStorage: storage.NewMemoryStorage()}
	m, _ := store.CreateMessage(ctx, storage.Message{OriginURL: "https://example.com/corrupt"})

	client := newFakeClient()
	client.data[keyPrefix+m.ID] = "{not json"
	c := Wrap(store, client, time.Hour, quietLogger())

	got, err := c.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.OriginURL, got.OriginURL)
	assert.Equal(t, 1, store.gets)
}

func TestMessageCache_DelegatesShares(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	c := Wrap(store, newFakeClient(), time.Hour, quietLogger())

	m, _ := c.CreateMessage(ctx, storage.Message{OriginURL: "https://example.com/delegate"})
	_, err := c.CreateShare(ctx, storage.Share{RefCode: "dlgtAA7", MessageID: m.ID, Hop: 1})
	require.NoError(t, err)

	views, err := c.IncrementViews(ctx, "dlgtAA7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)
	assert.Equal(t, 1, store.Len())
}
