package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

// entry is what actually lands in the Store. InsertedAt lets us evict lazily
// even when a backend keeps the value past its TTL.
type entry[T any] struct {
	Value      T         `json:"value"`
	InsertedAt time.Time `json:"inserted_at"`
}

type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// typed is the shared machinery behind ResponseCache and ContextCache. Store
// errors are logged and treated as misses; a cache never fails a turn.
type typed[T any] struct {
	name   string
	store  Store
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

func newTyped[T any](name string, store Store, ttl time.Duration, now func() time.Time) *typed[T] {
	if now == nil {
		now = time.Now
	}
	return &typed[T]{name: name, store: store, ttl: ttl, now: now}
}

func (c *typed[T]) get(ctx context.Context, key string) (T, bool) {
	var zero T
	if c == nil || c.store == nil {
		return zero, false
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("cache", c.name).Msg("cache read failed")
		c.miss("error")
		return zero, false
	}
	if !ok {
		c.miss("miss")
		return zero, false
	}

	var e entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn().Err(err).Str("cache", c.name).Msg("dropping undecodable cache entry")
		_ = c.store.Delete(ctx, key)
		c.miss("error")
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.InsertedAt) >= c.ttl {
		if err := c.store.Delete(ctx, key); err != nil {
			log.Debug().Err(err).Str("cache", c.name).Msg("lazy eviction failed")
		}
		c.miss("expired")
		return zero, false
	}

	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	return e.Value, true
}

func (c *typed[T]) set(ctx context.Context, key string, value T) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(entry[T]{Value: value, InsertedAt: c.now().UTC()})
	if err != nil {
		log.Warn().Err(err).Str("cache", c.name).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		log.Warn().Err(err).Str("cache", c.name).Msg("cache write failed")
	}
}

func (c *typed[T]) miss(result string) {
	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues(c.name, result).Inc()
}

func (c *typed[T]) stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
