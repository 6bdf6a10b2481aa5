// Package storage provides the key-value object storage behind report
// records and uploaded X-rays.
//
// This package defines a Storage interface with implementations for:
// - MemoryStorage: In-process map for tests and throwaway runs
// - LocalStorage: File system storage for development
// - R2Storage: Cloudflare R2 or any S3-compatible bucket
// - RedisStorage: Redis hashes
// - PostgresStorage: A single key-value table in Postgres
//
// Every backend overwrites on Put when asked to. There is no versioning and
// no compare-and-swap; the last writer wins.
package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for object storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns an error if the operation fails or if the key already exists
	// (unless overwrite is enabled in opts).
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key.
	// Returns the data as an io.ReadCloser (caller must close), object metadata,
	// and an error. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key.
	// This operation is idempotent - no error is returned if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it will be auto-detected from the key extension.
	ContentType string

	// MaxSize specifies the maximum allowed size in bytes.
	// If the data exceeds this size, ErrTooLarge is returned.
	// A value of 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	// If false and the key exists, ErrKeyExists is returned.
	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string    // Object key
	Size         int64     // Size in bytes
	ContentType  string    // MIME type
	LastModified time.Time // Last modification time
	ETag         string    // Entity tag (if available)
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where objects are stored.
	// Example: "./data" or "/var/lib/radai"
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 or another S3-compatible store.
type R2Config struct {
	// AccountID is your Cloudflare account ID. Ignored when Endpoint is set.
	AccountID string

	// AccessKeyID is the API access key ID.
	AccessKeyID string

	// SecretAccessKey is the API secret key.
	SecretAccessKey string

	// BucketName is the name of the bucket to use.
	BucketName string

	// Endpoint overrides the R2 endpoint derived from AccountID, for MinIO
	// or other S3-compatible services.
	Endpoint string

	// UsePathStyle addresses the bucket in the path instead of the host.
	UsePathStyle bool

	// Region is the AWS region to use. Default: "auto"
	Region string
}

// RedisConfig holds configuration for Redis storage.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string.
	URL string

	// KeyPrefix namespaces every key. Default: "radai:"
	KeyPrefix string
}

// PostgresConfig holds configuration for Postgres storage.
type PostgresConfig struct {
	// DatabaseURL is a postgres:// connection string.
	DatabaseURL string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderMemory identifies the in-process storage provider.
	ProviderMemory = "memory"

	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"

	// ProviderRedis identifies the Redis storage provider.
	ProviderRedis = "redis"

	// ProviderPostgres identifies the Postgres storage provider.
	ProviderPostgres = "postgres"
)

// IsProvider reports whether name is a known storage provider.
func IsProvider(name string) bool {
	switch name {
	case ProviderMemory, ProviderLocal, ProviderR2, ProviderRedis, ProviderPostgres:
		return true
	}
	return false
}

// =============================================================================
// Key Generation Helpers
// =============================================================================

const (
	reportKeyPrefix = "report_"
	xrayKeyPrefix   = "xray_"
)

// ReportKey returns the storage key for a report record.
// Format: report_{id}
func ReportKey(reportID string) string {
	return reportKeyPrefix + reportID
}

// XrayKey returns the storage key for the JPEG copy of a report's X-ray.
// Format: xray_{id}.jpg
func XrayKey(reportID string) string {
	return xrayKeyPrefix + reportID + ".jpg"
}

// validateKey checks if a storage key is valid.
// Rejects empty keys, keys with path traversal, and control characters.
func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	if strings.ContainsFunc(key, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return ErrInvalidKey
	}
	return nil
}

// readLimited reads all of data, failing with ErrTooLarge past maxSize.
func readLimited(data io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(data)
	}
	b, err := io.ReadAll(io.LimitReader(data, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxSize {
		return nil, ErrTooLarge
	}
	return b, nil
}
