// Пакет service реализует выдачу шар, цепочки пересылок и учет просмотров.
package service

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BuzzLyutic/hoplink/internal/storage"
)

// Виды ошибок. Все ошибки сервиса оборачивают один из них.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Кастомные ошибки, возвращаемые сервисом
var (
	ErrEmptyURL        = fmt.Errorf("%w: URL cannot be empty", ErrValidation)
	ErrInvalidURL      = fmt.Errorf("%w: invalid URL", ErrValidation)
	ErrEmptyMessageID  = fmt.Errorf("%w: message id is required", ErrValidation)
	ErrLineageMismatch = fmt.Errorf("%w: parent share belongs to another message", ErrValidation)

	ErrMessageNotFound = fmt.Errorf("%w: message not found", ErrNotFound)
	ErrParentNotFound  = fmt.Errorf("%w: parent share not found", ErrNotFound)
	ErrShareNotFound   = fmt.Errorf("%w: share not found", ErrNotFound)

	ErrTooManyCollisions = fmt.Errorf("%w: could not allocate unique code", ErrConflict)
	ErrBrokenLineage     = fmt.Errorf("%w: share lineage is cyclic or too deep", ErrConflict)

	ErrHitNotRecorded = fmt.Errorf("%w: view counted but hit not recorded", ErrStoreUnavailable)
)

const (
	maxAttempts     = 3    // Максимальное кол-во попыток разрешения коллизий
	maxLineageDepth = 1024 // Предел длины цепочки при обходе родителей
)

const sharePathPrefix = "/s/"

// CodeIssuer выдает новые реферальные коды
type CodeIssuer interface {
	Generate() (string, error)
}

// Config содержит конфиг сервиса
type Config struct {
	BaseURL string // Базовый URL для ссылок на шары
}

// Service предоставляет операции над сообщениями и шарами
type Service struct {
	storage storage.Storage
	issuer  CodeIssuer
	config  Config
	tracer  trace.Tracer
}

// New создает сервис. Хранилище передается один раз при старте процесса.
func New(store storage.Storage, issuer CodeIssuer, config Config) *Service {
	return &Service{
		storage: store,
		issuer:  issuer,
		config:  config,
		tracer:  otel.Tracer("github.com/BuzzLyutic/hoplink/internal/service"),
	}
}

// storeErr помечает ошибку хранилища как ErrStoreUnavailable
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// endSpan фиксирует ошибку в спане и закрывает его
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// buildShareURL собирает полную ссылку на шару
func (s *Service) buildShareURL(code string) string {
	if s.config.BaseURL == "" {
		return code
	}
	return s.config.BaseURL + sharePathPrefix + code
}
