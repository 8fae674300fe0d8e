package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BuzzLyutic/hoplink/internal/metrics"
	"github.com/BuzzLyutic/hoplink/internal/refcode"
	"github.com/BuzzLyutic/hoplink/internal/storage"
)

// MessageInput данные для регистрации сообщения
type MessageInput struct {
	OriginURL   string
	Title       string
	Description string
}

// ShareResult содержит результат создания шары
type ShareResult struct {
	ShareID       string
	RefCode       string
	MessageID     string
	ParentShareID *string
	Hop           int
	ShareURL      string
}

// ResolvedShare содержит данные шары вместе с целевой ссылкой
type ResolvedShare struct {
	ShareID       string
	RefCode       string
	MessageID     string
	ParentShareID *string
	TargetURL     string
	Title         string
	Description   string
	Hop           int
	Views         int64
}

// RegisterMessage сохраняет новое сообщение
func (s *Service) RegisterMessage(ctx context.Context, in MessageInput) (msg *storage.Message, err error) {
	ctx, span := s.tracer.Start(ctx, "service.RegisterMessage")
	defer func() { endSpan(span, err) }()

	originURL := strings.TrimSpace(in.OriginURL)
	if err := validateURL(originURL); err != nil {
		return nil, err
	}

	msg, err = s.storage.CreateMessage(ctx, storage.Message{
		OriginURL:   originURL,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		return nil, storeErr("saving message", err)
	}

	metrics.MessagesRegistered.Inc()
	span.SetAttributes(attribute.String("message.id", msg.ID))
	return msg, nil
}

// RegisterAndShare регистрирует сообщение и сразу создает для него корневую шару
func (s *Service) RegisterAndShare(ctx context.Context, in MessageInput) (*ShareResult, error) {
	msg, err := s.RegisterMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.CreateShare(ctx, msg.ID, "")
}

// CreateShare создает новую шару сообщения.
// Без parentRefCode шара корневая (hop = 1), иначе hop = hop родителя + 1.
// Пустой messageID допустим при наличии родителя: сообщение берется у него.
func (s *Service) CreateShare(ctx context.Context, messageID, parentRefCode string) (res *ShareResult, err error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateShare", trace.WithAttributes(
		attribute.String("message.id", messageID),
		attribute.String("share.parent_ref_code", parentRefCode),
	))
	defer func() { endSpan(span, err) }()

	if messageID == "" && parentRefCode == "" {
		return nil, ErrEmptyMessageID
	}

	hop := 1
	var parentID *string

	if parentRefCode != "" {
		parent, err := s.lookupShare(ctx, parentRefCode)
		if err != nil {
			if errors.Is(err, ErrShareNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}

		if messageID == "" {
			messageID = parent.MessageID
		} else if messageID != parent.MessageID {
			return nil, ErrLineageMismatch
		}

		// Hop 0 у старых записей означает NULL и считается нулем
		hop = parent.Hop + 1
		parentID = &parent.ID
	} else {
		if _, err := s.storage.GetMessage(ctx, messageID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrMessageNotFound
			}
			return nil, storeErr("getting message", err)
		}
	}

	// Сгенерировать новый код с обработкой коллизий
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := s.issuer.Generate()
		if err != nil {
			return nil, fmt.Errorf("%w: issuing ref code: %w", ErrStoreUnavailable, err)
		}

		created, err := s.storage.CreateShare(ctx, storage.Share{
			RefCode:       code,
			MessageID:     messageID,
			ParentShareID: parentID,
			Hop:           hop,
		})
		if err == nil {
			metrics.ShareCreated(hop)
			span.SetAttributes(
				attribute.String("share.ref_code", created.RefCode),
				attribute.Int("share.hop", created.Hop),
			)
			return &ShareResult{
				ShareID:       created.ID,
				RefCode:       created.RefCode,
				MessageID:     created.MessageID,
				ParentShareID: created.ParentShareID,
				Hop:           created.Hop,
				ShareURL:      s.buildShareURL(created.RefCode),
			}, nil
		}

		if errors.Is(err, storage.ErrAlreadyExists) {
			// Коллизия
			metrics.CodeCollisions.Inc()
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			if parentID != nil {
				return nil, ErrParentNotFound
			}
			return nil, ErrMessageNotFound
		}
		return nil, storeErr("saving share", err)
	}

	return nil, ErrTooManyCollisions
}

// ResolveShare возвращает данные шары и ссылку, на которую она ведет
func (s *Service) ResolveShare(ctx context.Context, code string) (res *ResolvedShare, err error) {
	ctx, span := s.tracer.Start(ctx, "service.ResolveShare", trace.WithAttributes(
		attribute.String("share.ref_code", code),
	))
	defer func() { endSpan(span, err) }()

	share, err := s.lookupShare(ctx, code)
	if err != nil {
		return nil, err
	}

	msg, err := s.storage.GetMessage(ctx, share.MessageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, storeErr("getting message", err)
	}

	return &ResolvedShare{
		ShareID:       share.ID,
		RefCode:       share.RefCode,
		MessageID:     share.MessageID,
		ParentShareID: share.ParentShareID,
		TargetURL:     msg.OriginURL,
		Title:         msg.Title,
		Description:   msg.Description,
		Hop:           share.Hop,
		Views:         share.Views,
	}, nil
}

// Lineage возвращает цепочку шар от корня до шары с кодом code.
// Если родитель отсутствует в хранилище, цепочка начинается с ближайшей известной шары.
func (s *Service) Lineage(ctx context.Context, code string) (chain []storage.Share, err error) {
	ctx, span := s.tracer.Start(ctx, "service.Lineage", trace.WithAttributes(
		attribute.String("share.ref_code", code),
	))
	defer func() { endSpan(span, err) }()

	current, err := s.lookupShare(ctx, code)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{current.ID: true}
	chain = []storage.Share{*current}

	for current.ParentShareID != nil {
		if len(chain) >= maxLineageDepth {
			return nil, ErrBrokenLineage
		}

		parent, err := s.storage.GetShareByID(ctx, *current.ParentShareID)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, storeErr("getting parent share", err)
		}
		if visited[parent.ID] {
			return nil, ErrBrokenLineage
		}

		visited[parent.ID] = true
		chain = append(chain, *parent)
		current = parent
	}

	// Корень первым
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// lookupShare находит шару по коду. Код неверной формы в хранилище не ищется.
func (s *Service) lookupShare(ctx context.Context, code string) (*storage.Share, error) {
	if !refcode.IsLookupKey(code) {
		return nil, ErrShareNotFound
	}

	share, err := s.storage.GetShareByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, storeErr("getting share", err)
	}
	return share, nil
}

// validateURL проверяет валидность URL
func validateURL(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidURL
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}

	return nil
}
