// Пакет storage описывает хранилище сообщений, шар и посещений.
package storage

import (
	"context"
	"errors"
	"time"
)

// Кастомные ошибки для реализаций хранилищ
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("ref code already exists")
)

// Message представляет исходный контент, который отслеживается через шары
type Message struct {
	ID          string
	OriginURL   string
	Title       string
	Description string
	CreatedAt   time.Time
}

// Share представляет один реферальный код, ведущий на сообщение
type Share struct {
	ID            string
	RefCode       string
	MessageID     string
	ParentShareID *string // nil означает корневую шару
	Hop           int     // 0 означает отсутствующее значение в старых записях
	Views         int64
	CreatedAt     time.Time
}

// IsRoot сообщает, является ли шара корневой
func (s *Share) IsRoot() bool {
	return s.ParentShareID == nil
}

// Hit фиксирует одно посещение шары. Записи только добавляются.
type Hit struct {
	ID          string
	ShareID     string
	MessageID   string // пусто, если сообщение не удалось определить
	UserAgent   string
	Fingerprint string
	CreatedAt   time.Time
}

// ShareStats содержит агрегаты по шарам одного сообщения
type ShareStats struct {
	Shares int64
	MaxHop int
}

// Storage определяет интерфейс хранилища
type Storage interface {
	CreateMessage(ctx context.Context, m Message) (*Message, error)                // CreateMessage сохраняет сообщение и присваивает ему идентификатор.
	GetMessage(ctx context.Context, id string) (*Message, error)                   // GetMessage возвращает сообщение по идентификатору.
	CreateShare(ctx context.Context, s Share) (*Share, error)                      // CreateShare сохраняет шару; ErrAlreadyExists при коллизии кода.
	GetShareByCode(ctx context.Context, code string) (*Share, error)               // GetShareByCode возвращает шару по реферальному коду.
	GetShareByID(ctx context.Context, id string) (*Share, error)                   // GetShareByID возвращает шару по идентификатору.
	IncrementViews(ctx context.Context, code string) (int64, error)                // IncrementViews атомарно увеличивает счетчик и возвращает новое значение.
	AppendHit(ctx context.Context, h Hit) error                                    // AppendHit добавляет запись о посещении.
	CountHitsByMessage(ctx context.Context, messageID string) (int64, error)       // CountHitsByMessage считает посещения всех шар сообщения.
	ShareStatsByMessage(ctx context.Context, messageID string) (ShareStats, error) // ShareStatsByMessage возвращает агрегаты по шарам сообщения.
	Close() error                                                                  // Close закрывает хранилище и освобождает ресурсы.
}
