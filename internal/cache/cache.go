// Package cache remembers which files have already been rewritten with a
// given header and selector, so repeated runs can skip them without parsing.
//
// An entry maps (ruleset, file path) to the digest of the bytes headswap last
// wrote to that file. A file is up to date when its current digest equals the
// stored one. Entries live in Redis; an in-memory store backs tests and
// single-run use.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"headswap/internal/config"
)

// Store is the key/value backend of a Cache.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

type Cache struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// New connects to the Redis server described by cfg and verifies the
// connection with a PING.
func New(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewWithStore(&redisStore{client: client}, cfg.KeyPrefix, ttl), nil
}

// NewWithStore builds a Cache on an arbitrary store.
func NewWithStore(store Store, prefix string, ttl time.Duration) *Cache {
	return &Cache{store: store, prefix: prefix, ttl: ttl}
}

// Ruleset fingerprints everything that determines the rewritten output
// apart from the document itself.
func Ruleset(header []byte, selector, format string) string {
	d := xxhash.New()
	_, _ = d.Write(header)
	_, _ = d.WriteString("\x00" + selector + "\x00" + format)
	return strconv.FormatUint(d.Sum64(), 16)
}

// Digest returns the content digest stored for a file.
func Digest(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

func (c *Cache) generateKey(ruleset, path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return c.prefix + ruleset + ":" + strconv.FormatUint(xxhash.Sum64String(path), 16)
}

// UpToDate reports whether content is exactly what was last written to path
// under ruleset.
func (c *Cache) UpToDate(ctx context.Context, ruleset, path string, content []byte) (bool, error) {
	stored, ok, err := c.store.Get(ctx, c.generateKey(ruleset, path))
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return ok && stored == Digest(content), nil
}

// Remember records content as the rewritten state of path under ruleset.
func (c *Cache) Remember(ctx context.Context, ruleset, path string, content []byte) error {
	if err := c.store.Set(ctx, c.generateKey(ruleset, path), Digest(content), c.ttl); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// Memory is a process-local Store. TTLs are ignored.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.entries[key]
	return val, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
