package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// LocalStorage Implementation
// =============================================================================

// LocalStorage implements the Storage interface using the local filesystem.
// Each key is one file under the base directory.
//
// Security: Path traversal prevention is enforced in resolvePath().
type LocalStorage struct {
	basePath string // Root directory for file storage
	logger   *slog.Logger
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage instance.
//
// The base directory is created if it doesn't exist.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath)

	return &LocalStorage{
		basePath: absPath,
		logger:   logger,
	}, nil
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Put stores data at the specified key.
//
// Data is written to a temporary file and renamed into place, so a reader
// never observes a partially written object.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return opError(ProviderLocal, "Put", key, err)
	}

	if !opts.Overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return opError(ProviderLocal, "Put", key, ErrKeyExists)
		}
	}

	b, err := readLimited(data, opts.MaxSize)
	if err != nil {
		return opError(ProviderLocal, "Put", key, err)
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return opError(ProviderLocal, "Put", key, fmt.Errorf("failed to create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return opError(ProviderLocal, "Put", key, fmt.Errorf("failed to create file: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return opError(ProviderLocal, "Put", key, fmt.Errorf("failed to write file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return opError(ProviderLocal, "Put", key, fmt.Errorf("failed to close file: %w", err))
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return opError(ProviderLocal, "Put", key, fmt.Errorf("failed to move file into place: %w", err))
	}

	s.logger.Debug("stored file",
		"key", key,
		"size", len(b),
		"content_type", opts.ContentType,
	)

	return nil
}

// Get retrieves the data at the specified key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if ctx.Err() != nil {
		return nil, ObjectInfo{}, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, opError(ProviderLocal, "Get", key, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, opError(ProviderLocal, "Get", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, opError(ProviderLocal, "Get", key, fmt.Errorf("failed to open file: %w", err))
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ObjectInfo{}, opError(ProviderLocal, "Get", key, fmt.Errorf("failed to stat file: %w", err))
	}

	info := ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType("", key, nil),
		LastModified: stat.ModTime(),
	}

	return file, info, nil
}

// Delete removes the object at the specified key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return opError(ProviderLocal, "Delete", key, err)
	}

	// Idempotent - no error if it doesn't exist
	err = os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return opError(ProviderLocal, "Delete", key, fmt.Errorf("failed to delete file: %w", err))
	}

	s.logger.Debug("deleted file", "key", key)

	return nil
}

// Exists checks if an object exists at the specified key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return false, opError(ProviderLocal, "Exists", key, err)
	}

	_, err = os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, opError(ProviderLocal, "Exists", key, fmt.Errorf("failed to stat file: %w", err))
	}

	return true, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// resolvePath converts a storage key to an absolute file path inside the
// base directory.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	cleanKey := filepath.Clean(key)
	if filepath.IsAbs(cleanKey) || strings.HasPrefix(filepath.Base(cleanKey), ".tmp-") {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return absPath, nil
}
