// Package cache holds the response cache and the retrieval context cache.
// Both are typed views over a byte-oriented Store so the backend can be
// swapped between process memory, Redis and the Upstash REST API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidKey = errors.New("cache key is empty")
	ErrNilStore   = errors.New("cache store is nil")
)

// Store is a byte-oriented key/value store with per-entry TTL. Get reports a
// miss with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendUpstash = "upstash"
)

type Config struct {
	Backend     string        `split_words:"true" default:"memory"`
	KeyPrefix   string        `split_words:"true" default:"concierge:"`
	ResponseTTL time.Duration `split_words:"true" default:"1h"`
	ContextTTL  time.Duration `split_words:"true" default:"10m"`
	MaxEntries  int           `split_words:"true" default:"10000"`
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case BackendMemory, BackendRedis, BackendUpstash:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Backend)
	}
	if c.ResponseTTL <= 0 || c.ContextTTL <= 0 {
		return errors.New("cache ttls must be > 0")
	}
	if c.ContextTTL >= c.ResponseTTL {
		return errors.New("context ttl must be shorter than response ttl")
	}
	if c.MaxEntries <= 0 {
		return errors.New("cache max entries must be > 0")
	}
	return nil
}

// NormalizeQuery is the exact-match key normalization shared by both caches.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
