package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/hoplink/internal/storage"
)

// hitFailStorage отклоняет запись посещений
type hitFailStorage struct {
	storage.Storage
}

func (h *hitFailStorage) AppendHit(context.Context, storage.Hit) error {
	return errors.New("disk full")
}

// incrementFailStorage отклоняет увеличение счетчика
type incrementFailStorage struct {
	storage.Storage
	hits int
}

func (s *incrementFailStorage) IncrementViews(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}

func (s *incrementFailStorage) AppendHit(ctx context.Context, h storage.Hit) error {
	s.hits++
	return s.Storage.AppendHit(ctx, h)
}

func TestService_RecordView(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	msg := registerMessage(t, svc)
	share, _ := svc.CreateShare(ctx, msg.ID, "")

	for want := int64(1); want <= 3; want++ {
		got, err := svc.RecordView(ctx, share.RefCode, Visitor{UserAgent: "TestAgent/1.0", Fingerprint: "abc"})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	resolved, err := svc.ResolveShare(ctx, share.RefCode)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resolved.Views)
	assert.Equal(t, 3, store.HitCount())
}

func TestService_RecordView_NotFound(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"zzzzzz9", "x", "bad code"} {
		_, err := svc.RecordView(ctx, code, Visitor{})
		assert.ErrorIs(t, err, ErrShareNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 0, store.HitCount())
}

func TestService_RecordView_HitFailureKeepsIncrement(t *testing.T) {
	mem := storage.NewMemoryStorage()
	svc := New(&hitFailStorage{Storage: mem}, &seqIssuer{codes: []string{"hitFAi2"}}, Config{})
	ctx := context.Background()

	msg, _ := svc.RegisterMessage(ctx, MessageInput{OriginURL: "https://example.com/partial"})
	share, err := svc.CreateShare(ctx, msg.ID, "")
	require.NoError(t, err)

	views, err := svc.RecordView(ctx, share.RefCode, Visitor{})
	assert.Equal(t, int64(1), views)
	assert.ErrorIs(t, err, ErrHitNotRecorded)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	stored, _ := mem.GetShareByCode(ctx, share.RefCode)
	assert.Equal(t, int64(1), stored.Views)
}

func TestService_RecordView_IncrementFailure(t *testing.T) {
	mem := storage.NewMemoryStorage()
	store := &incrementFailStorage{Storage: mem}
	svc := New(store, &seqIssuer{codes: []string{"incFAi2"}}, Config{})
	ctx := context.Background()

	msg, _ := svc.RegisterMessage(ctx, MessageInput{OriginURL: "https://example.com/inc"})
	share, _ := svc.CreateShare(ctx, msg.ID, "")

	_, err := svc.RecordView(ctx, share.RefCode, Visitor{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 0, store.hits, "hit must not be recorded when the counter was not incremented")
}

func TestService_RecordView_Concurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	msg := registerMessage(t, svc)
	share, _ := svc.CreateShare(ctx, msg.ID, "")

	const visitors = 50
	var wg sync.WaitGroup
	wg.Add(visitors)
	for i := 0; i < visitors; i++ {
		go func() {
			defer wg.Done()
			_, _ = svc.RecordView(ctx, share.RefCode, Visitor{})
		}()
	}
	wg.Wait()

	resolved, err := svc.ResolveShare(ctx, share.RefCode)
	require.NoError(t, err)
	assert.Equal(t, int64(visitors), resolved.Views)
}

func TestService_MessageStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	msg := registerMessage(t, svc)

	root, _ := svc.CreateShare(ctx, msg.ID, "")
	child, _ := svc.CreateShare(ctx, "", root.RefCode)
	_, _ = svc.CreateShare(ctx, "", child.RefCode)

	_, _ = svc.RecordView(ctx, root.RefCode, Visitor{})
	_, _ = svc.RecordView(ctx, child.RefCode, Visitor{})
	_, _ = svc.RecordView(ctx, child.RefCode, Visitor{})

	stats, err := svc.MessageStats(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Shares)
	assert.Equal(t, 3, stats.MaxHop)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, msg.OriginURL, stats.OriginURL)

	_, err = svc.MessageStats(ctx, "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.MessageStats(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyMessageID)
}

func TestService_CountHitsByMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	msg := registerMessage(t, svc)
	other := registerMessage(t, svc)

	a, _ := svc.CreateShare(ctx, msg.ID, "")
	b, _ := svc.CreateShare(ctx, other.ID, "")

	_, _ = svc.RecordView(ctx, a.RefCode, Visitor{})
	_, _ = svc.RecordView(ctx, a.RefCode, Visitor{})
	_, _ = svc.RecordView(ctx, b.RefCode, Visitor{})

	count, err := svc.CountHitsByMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = svc.CountHitsByMessage(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = svc.CountHitsByMessage(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyMessageID)
}

func BenchmarkService_RecordView(b *testing.B) {
	svc, _ := newTestService(b)
	ctx := context.Background()
	msg := registerMessage(b, svc)
	share, _ := svc.CreateShare(ctx, msg.ID, "")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = svc.RecordView(ctx, share.RefCode, Visitor{})
	}
}
