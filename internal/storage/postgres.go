package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Коды ошибок PostgreSQL
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

const queryTimeout = 5 * time.Second

// PostgreSQL реализация хранилища
type PostgresStorage struct {
	db *sql.DB
}

// Конфигурация подключения для PostgreSQL
type PostgresConfig struct {
	DSN             string        // Строка подключения
	MaxOpenConns    int           // Макс. открытых соединений
	MaxIdleConns    int           // Макс. незанятых соединений
	ConnMaxLifetime time.Duration // Макс. время жизни соединения
	ConnMaxIdleTime time.Duration // Макс. время жизни незанятого соединения
}

// Конфиг Postgres по умолчанию
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

func NewPostgresStorage(cfg PostgresConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// CreateMessage сохраняет сообщение
func (s *PostgresStorage) CreateMessage(ctx context.Context, m Message) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, origin_url, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.OriginURL,
		nullString(m.Title),
		nullString(m.Description),
		m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	return &m, nil
}

// GetMessage возвращает сообщение по идентификатору
func (s *PostgresStorage) GetMessage(ctx context.Context, id string) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, origin_url, title, description, created_at
		FROM messages
		WHERE id = $1
	`

	var (
		m           Message
		title, desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.OriginURL,
		&title,
		&desc,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isInvalidText(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying message: %w", err)
	}

	m.Title = title.String
	m.Description = desc.String
	return &m, nil
}

// CreateShare сохраняет шару. Коллизия кода дает ErrAlreadyExists.
func (s *PostgresStorage) CreateShare(ctx context.Context, sh Share) (*Share, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sh.ID = uuid.NewString()
	sh.Views = 0
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO shares (id, ref_code, message_id, parent_share_id, hop, views, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		sh.ID,
		sh.RefCode,
		sh.MessageID,
		sh.ParentShareID,
		sh.Hop,
		sh.CreatedAt,
	)
	if err != nil {
		switch pqCode(err) {
		case pgUniqueViolation:
			return nil, ErrAlreadyExists
		case pgForeignKeyViolation, pgInvalidText:
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("inserting share: %w", err)
	}

	return &sh, nil
}

const selectShare = `
	SELECT id, ref_code, message_id, parent_share_id, hop, views, created_at
	FROM shares
`

// GetShareByCode возвращает шару по реферальному коду
func (s *PostgresStorage) GetShareByCode(ctx context.Context, code string) (*Share, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sh, err := scanShare(s.db.QueryRowContext(ctx, selectShare+` WHERE ref_code = $1`, code))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying share by code: %w", err)
	}
	return sh, nil
}

// GetShareByID возвращает шару по идентификатору
func (s *PostgresStorage) GetShareByID(ctx context.Context, id string) (*Share, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sh, err := scanShare(s.db.QueryRowContext(ctx, selectShare+` WHERE id = $1`, id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying share by id: %w", err)
	}
	return sh, nil
}

// IncrementViews атомарно увеличивает счетчик одним запросом
func (s *PostgresStorage) IncrementViews(ctx context.Context, code string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE shares
		SET views = views + 1
		WHERE ref_code = $1
		RETURNING views
	`

	var views int64
	err := s.db.QueryRowContext(ctx, query, code).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing views: %w", err)
	}
	return views, nil
}

// AppendHit добавляет запись о посещении
func (s *PostgresStorage) AppendHit(ctx context.Context, h Hit) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	h.ID = uuid.NewString()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO hits (id, share_id, message_id, user_agent, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.ShareID,
		nullString(h.MessageID),
		nullString(h.UserAgent),
		nullString(h.Fingerprint),
		h.CreatedAt,
	)
	if err != nil {
		if pqCode(err) == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("inserting hit: %w", err)
	}
	return nil
}

// CountHitsByMessage считает посещения по сообщению
func (s *PostgresStorage) CountHitsByMessage(ctx context.Context, messageID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hits WHERE message_id = $1`, messageID).Scan(&count)
	if err != nil {
		if isInvalidText(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting hits: %w", err)
	}
	return count, nil
}

// ShareStatsByMessage возвращает число шар и максимальную глубину
func (s *PostgresStorage) ShareStatsByMessage(ctx context.Context, messageID string) (ShareStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT COUNT(*), COALESCE(MAX(hop), 0)
		FROM shares
		WHERE message_id = $1
	`

	var stats ShareStats
	err := s.db.QueryRowContext(ctx, query, messageID).Scan(&stats.Shares, &stats.MaxHop)
	if err != nil {
		if isInvalidText(err) {
			return ShareStats{}, nil
		}
		return ShareStats{}, fmt.Errorf("querying share stats: %w", err)
	}
	return stats, nil
}

// Close закрывает соединение с БД
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Ping проверяет соединение с БД
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanShare(row *sql.Row) (*Share, error) {
	var (
		sh     Share
		parent sql.NullString
		hop    sql.NullInt64
	)
	err := row.Scan(
		&sh.ID,
		&sh.RefCode,
		&sh.MessageID,
		&parent,
		&hop,
		&sh.Views,
		&sh.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if parent.Valid {
		sh.ParentShareID = &parent.String
	}
	// NULL в hop встречается в старых записях
	if hop.Valid {
		sh.Hop = int(hop.Int64)
	}
	return &sh, nil
}

// pqCode возвращает SQLSTATE ошибки драйвера
func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// isInvalidText сообщает о невалидном UUID во входных данных
func isInvalidText(err error) bool {
	return pqCode(err) == pgInvalidText
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
