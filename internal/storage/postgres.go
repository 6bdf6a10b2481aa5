package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements the Storage interface on the objects table
// created by the embedded migrations.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Storage = (*PostgresStorage)(nil)

const (
	upsertObjectSQL = `INSERT INTO objects (key, data, content_type, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE
SET data = EXCLUDED.data, content_type = EXCLUDED.content_type, updated_at = now()`

	insertObjectSQL = `INSERT INTO objects (key, data, content_type, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO NOTHING`

	selectObjectSQL = `SELECT data, content_type, updated_at FROM objects WHERE key = $1`
	existsObjectSQL = `SELECT EXISTS (SELECT 1 FROM objects WHERE key = $1)`
	deleteObjectSQL = `DELETE FROM objects WHERE key = $1`
)

// NewPostgresStorage opens a connection pool and verifies it.
func NewPostgresStorage(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStorage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	logger.Info("initialized postgres storage", "host", poolCfg.ConnConfig.Host, "database", poolCfg.ConnConfig.Database)

	return &PostgresStorage{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *PostgresStorage) Close() {
	s.pool.Close()
}

// Put stores data at the specified key.
func (s *PostgresStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return opError(ProviderPostgres, "Put", key, err)
	}

	b, err := readLimited(data, opts.MaxSize)
	if err != nil {
		return opError(ProviderPostgres, "Put", key, err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DetectContentType("", key, nil)
	}

	query := upsertObjectSQL
	if !opts.Overwrite {
		query = insertObjectSQL
	}

	tag, err := s.pool.Exec(ctx, query, key, b, contentType)
	if err != nil {
		return opError(ProviderPostgres, "Put", key, err)
	}
	if !opts.Overwrite && tag.RowsAffected() == 0 {
		return opError(ProviderPostgres, "Put", key, ErrKeyExists)
	}

	s.logger.Debug("stored object in postgres", "key", key, "size", len(b))
	return nil
}

// Get retrieves the data at the specified key.
func (s *PostgresStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, opError(ProviderPostgres, "Get", key, err)
	}

	var (
		data        []byte
		contentType string
		updatedAt   time.Time
	)
	err := s.pool.QueryRow(ctx, selectObjectSQL, key).Scan(&data, &contentType, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ObjectInfo{}, opError(ProviderPostgres, "Get", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, opError(ProviderPostgres, "Get", key, err)
	}

	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: updatedAt,
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// Delete removes the object at the specified key.
func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return opError(ProviderPostgres, "Delete", key, err)
	}
	if _, err := s.pool.Exec(ctx, deleteObjectSQL, key); err != nil {
		return opError(ProviderPostgres, "Delete", key, err)
	}
	return nil
}

// Exists checks if an object exists at the specified key.
func (s *PostgresStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, opError(ProviderPostgres, "Exists", key, err)
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, existsObjectSQL, key).Scan(&exists); err != nil {
		return false, opError(ProviderPostgres, "Exists", key, err)
	}
	return exists, nil
}
