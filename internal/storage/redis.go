package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the Storage interface with one Redis hash per key.
//
// Hash fields: data, content_type, modified (unix nanoseconds).
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ Storage = (*RedisStorage)(nil)

const (
	redisFieldData        = "data"
	redisFieldContentType = "content_type"
	redisFieldModified    = "modified"
)

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("initialized redis storage", "addr", opt.Addr, "db", opt.DB)

	return NewRedisStorageFromClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisStorageFromClient wraps an existing client.
func NewRedisStorageFromClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisStorage {
	if prefix == "" {
		prefix = "radai:"
	}
	return &RedisStorage{client: client, prefix: prefix, logger: logger}
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Put stores data at the specified key.
func (s *RedisStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return opError(ProviderRedis, "Put", key, err)
	}

	b, err := readLimited(data, opts.MaxSize)
	if err != nil {
		return opError(ProviderRedis, "Put", key, err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DetectContentType("", key, nil)
	}
	rkey := s.redisKey(key)

	if !opts.Overwrite {
		created, err := s.client.HSetNX(ctx, rkey, redisFieldData, b).Result()
		if err != nil {
			return opError(ProviderRedis, "Put", key, err)
		}
		if !created {
			return opError(ProviderRedis, "Put", key, ErrKeyExists)
		}
	}

	fields := map[string]interface{}{
		redisFieldData:        b,
		redisFieldContentType: contentType,
		redisFieldModified:    strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := s.client.HSet(ctx, rkey, fields).Err(); err != nil {
		return opError(ProviderRedis, "Put", key, err)
	}

	s.logger.Debug("stored object in redis", "key", key, "size", len(b))
	return nil
}

// Get retrieves the data at the specified key.
func (s *RedisStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, opError(ProviderRedis, "Get", key, err)
	}

	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ObjectInfo{}, opError(ProviderRedis, "Get", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, opError(ProviderRedis, "Get", key, err)
	}
	data, ok := fields[redisFieldData]
	if !ok {
		return nil, ObjectInfo{}, opError(ProviderRedis, "Get", key, ErrNotFound)
	}

	info := ObjectInfo{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: fields[redisFieldContentType],
	}
	if ns, err := strconv.ParseInt(fields[redisFieldModified], 10, 64); err == nil {
		info.LastModified = time.Unix(0, ns)
	}

	return io.NopCloser(bytes.NewReader([]byte(data))), info, nil
}

// Delete removes the object at the specified key.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return opError(ProviderRedis, "Delete", key, err)
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return opError(ProviderRedis, "Delete", key, err)
	}
	return nil
}

// Exists checks if an object exists at the specified key.
func (s *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, opError(ProviderRedis, "Exists", key, err)
	}
	n, err := s.client.Exists(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, opError(ProviderRedis, "Exists", key, err)
	}
	return n > 0, nil
}

func (s *RedisStorage) redisKey(key string) string {
	return s.prefix + key
}
