package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BuzzLyutic/hoplink/internal/metrics"
	"github.com/BuzzLyutic/hoplink/internal/storage"
)

// Visitor метаданные посетителя для записи о посещении
type Visitor struct {
	UserAgent   string
	Fingerprint string
}

// MessageStats агрегированная статистика сообщения
type MessageStats struct {
	MessageID string
	OriginURL string
	Title     string
	Shares    int64
	MaxHop    int
	Hits      int64
}

// RecordView увеличивает счетчик просмотров шары и добавляет запись о посещении.
// Возвращает значение счетчика после увеличения.
//
// Если запись о посещении не сохранилась, увеличение остается в силе:
// возвращаются новое значение и ErrHitNotRecorded.
func (s *Service) RecordView(ctx context.Context, code string, visitor Visitor) (views int64, err error) {
	ctx, span := s.tracer.Start(ctx, "service.RecordView", trace.WithAttributes(
		attribute.String("share.ref_code", code),
	))
	defer func() { endSpan(span, err) }()

	share, err := s.lookupShare(ctx, code)
	if err != nil {
		return 0, err
	}

	views, err = s.storage.IncrementViews(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrShareNotFound
		}
		return 0, storeErr("incrementing views", err)
	}
	metrics.ShareViews.Inc()
	span.SetAttributes(attribute.Int64("share.views", views))

	err = s.storage.AppendHit(ctx, storage.Hit{
		ShareID:     share.ID,
		MessageID:   share.MessageID,
		UserAgent:   visitor.UserAgent,
		Fingerprint: visitor.Fingerprint,
	})
	if err != nil {
		return views, fmt.Errorf("%w: %w", ErrHitNotRecorded, err)
	}

	return views, nil
}

// CountHitsByMessage возвращает число посещений по всем шарам сообщения.
// Это отдельный запрос к журналу посещений, он не суммирует счетчики шар.
func (s *Service) CountHitsByMessage(ctx context.Context, messageID string) (int64, error) {
	if messageID == "" {
		return 0, ErrEmptyMessageID
	}

	count, err := s.storage.CountHitsByMessage(ctx, messageID)
	if err != nil {
		return 0, storeErr("counting hits", err)
	}
	return count, nil
}

// MessageStats возвращает число шар, максимальную глубину и число посещений сообщения
func (s *Service) MessageStats(ctx context.Context, messageID string) (stats *MessageStats, err error) {
	ctx, span := s.tracer.Start(ctx, "service.MessageStats", trace.WithAttributes(
		attribute.String("message.id", messageID),
	))
	defer func() { endSpan(span, err) }()

	if messageID == "" {
		return nil, ErrEmptyMessageID
	}

	msg, err := s.storage.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, storeErr("getting message", err)
	}

	shareStats, err := s.storage.ShareStatsByMessage(ctx, messageID)
	if err != nil {
		return nil, storeErr("getting share stats", err)
	}

	hits, err := s.CountHitsByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	return &MessageStats{
		MessageID: msg.ID,
		OriginURL: msg.OriginURL,
		Title:     msg.Title,
		Shares:    shareStats.Shares,
		MaxHop:    shareStats.MaxHop,
		Hits:      hits,
	}, nil
}
