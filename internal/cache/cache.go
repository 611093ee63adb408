package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cache interface defines cache operations
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	PurgeExpired(ctx context.Context) (int, error)
	Close() error
}

// CacheEntry represents a cached item. Payload holds the JSON encoded value.
type CacheEntry struct {
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	AccessedAt  time.Time       `json:"accessed_at"`
	AccessCount int             `json:"access_count"`
}

// Stats represents cache statistics
type Stats struct {
	Type           string        `json:"type"`
	TotalEntries   int           `json:"total_entries"`
	HitCount       int64         `json:"hit_count"`
	MissCount      int64         `json:"miss_count"`
	HitRate        float64       `json:"hit_rate"`
	MemoryUsage    int64         `json:"memory_usage_bytes"`
	OldestEntry    time.Time     `json:"oldest_entry"`
	AverageAge     time.Duration `json:"average_age"`
	ExpiredEntries int           `json:"expired_entries"`
}

// Common cache errors
var (
	ErrCacheMiss     = errors.New("cache miss")
	ErrCacheDisabled = errors.New("cache disabled")
)

// Cache types accepted by NewManager
const (
	TypeMemory       = "memory"
	TypeCloudStorage = "cloud-storage"
	TypeNone         = "none"
)

// Manager handles cache operations with convenience methods. A nil cache
// disables caching: reads miss and writes are dropped.
type Manager struct {
	cache     Cache
	cacheType string
}

// NewManager creates a new cache manager
func NewManager(ctx context.Context, cacheType string, duration time.Duration, bucket string) (*Manager, error) {
	switch cacheType {
	case TypeMemory:
		return &Manager{cache: NewMemoryCache(duration), cacheType: cacheType}, nil
	case TypeCloudStorage:
		c, err := NewCloudStorageCache(ctx, bucket, duration)
		if err != nil {
			return nil, fmt.Errorf("creating cloud storage cache: %w", err)
		}
		return &Manager{cache: c, cacheType: cacheType}, nil
	case TypeNone, "":
		return &Manager{cacheType: TypeNone}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheType)
	}
}

// NewManagerWithCache wraps an existing Cache implementation
func NewManagerWithCache(c Cache, cacheType string) *Manager {
	return &Manager{cache: c, cacheType: cacheType}
}

// Enabled reports whether a backing cache is configured
func (m *Manager) Enabled() bool {
	return m != nil && m.cache != nil
}

// GetJSON decodes the cached value for key into dst
func (m *Manager) GetJSON(ctx context.Context, key string, dst any) error {
	if !m.Enabled() {
		return ErrCacheMiss
	}

	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		return fmt.Errorf("decoding cached value: %w", err)
	}
	return nil
}

// SetJSON stores v under key
func (m *Manager) SetJSON(ctx context.Context, key string, v any) error {
	if !m.Enabled() {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	return m.cache.Set(ctx, key, &CacheEntry{Payload: data})
}

// GetStats returns cache statistics
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	if !m.Enabled() {
		return &Stats{Type: TypeNone}, nil
	}

	stats, err := m.cache.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Type = m.cacheType
	return stats, nil
}

// Clear clears all cached entries
func (m *Manager) Clear(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.cache.Clear(ctx)
}

// PurgeExpired removes expired entries and returns how many were removed
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	if !m.Enabled() {
		return 0, nil
	}
	return m.cache.PurgeExpired(ctx)
}

// Close releases the backing cache
func (m *Manager) Close() error {
	if !m.Enabled() {
		return nil
	}
	return m.cache.Close()
}

// GenerateKey builds a fixed length key from a namespace and the parts that
// identify a cached value.
func GenerateKey(namespace string, parts ...string) string {
	hash := md5.Sum([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("%s:%x", namespace, hash)
}
