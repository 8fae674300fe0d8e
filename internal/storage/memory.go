package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage реализация хранилища в памяти
type MemoryStorage struct {
	mu            sync.RWMutex
	messages      map[string]*Message
	shares        map[string]*Share // ID шары -> шара
	byCode        map[string]string // Реферальный код -> ID шары
	hits          []Hit
	hitsByMessage map[string]int64
}

// NewMemoryStorage создает новое хранилище в памяти
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages:      make(map[string]*Message),
		shares:        make(map[string]*Share),
		byCode:        make(map[string]string),
		hitsByMessage: make(map[string]int64),
	}
}

// CreateMessage сохраняет сообщение и присваивает ему идентификатор
func (s *MemoryStorage) CreateMessage(_ context.Context, m Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	stored := m
	s.messages[m.ID] = &stored

	out := m
	return &out, nil
}

// GetMessage возвращает сообщение по идентификатору
func (s *MemoryStorage) GetMessage(_ context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

// CreateShare сохраняет новую шару
func (s *MemoryStorage) CreateShare(_ context.Context, sh Share) (*Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[sh.RefCode]; ok {
		return nil, ErrAlreadyExists
	}
	// Аналог внешних ключей в БД
	if _, ok := s.messages[sh.MessageID]; !ok {
		return nil, ErrNotFound
	}
	if sh.ParentShareID != nil {
		if _, ok := s.shares[*sh.ParentShareID]; !ok {
			return nil, ErrNotFound
		}
	}

	sh.ID = uuid.NewString()
	sh.Views = 0
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now().UTC()
	}

	stored := copyShare(sh)
	s.shares[sh.ID] = &stored
	s.byCode[sh.RefCode] = sh.ID

	out := copyShare(sh)
	return &out, nil
}

// GetShareByCode возвращает шару по реферальному коду
func (s *MemoryStorage) GetShareByCode(_ context.Context, code string) (*Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyShare(*s.shares[id])
	return &out, nil
}

// GetShareByID возвращает шару по идентификатору
func (s *MemoryStorage) GetShareByID(_ context.Context, id string) (*Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shares[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyShare(*sh)
	return &out, nil
}

// IncrementViews увеличивает счетчик просмотров под блокировкой
func (s *MemoryStorage) IncrementViews(_ context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return 0, ErrNotFound
	}
	sh := s.shares[id]
	sh.Views++
	return sh.Views, nil
}

// AppendHit добавляет запись о посещении
func (s *MemoryStorage) AppendHit(_ context.Context, h Hit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shares[h.ShareID]; !ok {
		return ErrNotFound
	}

	h.ID = uuid.NewString()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	s.hits = append(s.hits, h)
	if h.MessageID != "" {
		s.hitsByMessage[h.MessageID]++
	}
	return nil
}

// CountHitsByMessage считает посещения по сообщению
func (s *MemoryStorage) CountHitsByMessage(_ context.Context, messageID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hitsByMessage[messageID], nil
}

// ShareStatsByMessage возвращает число шар и максимальную глубину
func (s *MemoryStorage) ShareStatsByMessage(_ context.Context, messageID string) (ShareStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats ShareStats
	for _, sh := range s.shares {
		if sh.MessageID != messageID {
			continue
		}
		stats.Shares++
		if sh.Hop > stats.MaxHop {
			stats.MaxHop = sh.Hop
		}
	}
	return stats, nil
}

// Close закрывает хранилище. Для хранения данных в памяти это не требуется
func (s *MemoryStorage) Close() error {
	return nil
}

// Len возвращает кол-во сохраненных шар (для тестов)
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shares)
}

// HitCount возвращает общее кол-во записей о посещениях (для тестов)
func (s *MemoryStorage) HitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hits)
}

// PutShare записывает шару как есть, минуя проверки.
// Используется для загрузки старых записей, например с пустым hop.
func (s *MemoryStorage) PutShare(sh Share) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sh.ID == "" {
		sh.ID = uuid.NewString()
	}
	stored := copyShare(sh)
	s.shares[sh.ID] = &stored
	s.byCode[sh.RefCode] = sh.ID
}

// copyShare копирует шару вместе с указателем на родителя
func copyShare(sh Share) Share {
	if sh.ParentShareID != nil {
		parent := *sh.ParentShareID
		sh.ParentShareID = &parent
	}
	return sh
}
