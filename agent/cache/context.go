package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// ContextCache memoizes retrieval results per (partition, normalized query).
// Its TTL is shorter than the response cache's because the knowledge base can
// change between full-answer expirations.
type ContextCache struct {
	prefix string
	c      *typed[contractx.RetrievalResult]
}

func NewContextCache(store Store, ttl time.Duration, opts ...Option) *ContextCache {
	o := buildOptions(opts)
	return &ContextCache{
		prefix: o.prefix,
		c:      newTyped[contractx.RetrievalResult]("context", store, ttl, o.now),
	}
}

func (c *ContextCache) key(partition *contractx.Partition, query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return c.prefix + "ctx:" + partition.Key() + ":" + hex.EncodeToString(sum[:])
}

func (c *ContextCache) Get(ctx context.Context, partition *contractx.Partition, query string) (contractx.RetrievalResult, bool) {
	if c == nil || NormalizeQuery(query) == "" {
		return contractx.RetrievalResult{}, false
	}
	res, ok := c.c.get(ctx, c.key(partition, query))
	if !ok {
		return contractx.RetrievalResult{}, false
	}
	if res.Sources == nil {
		res.Sources = []contractx.Source{}
	}
	return res, true
}

// Set stores a live result. Degraded results are ignored so a backend outage
// is not remembered past the outage itself.
func (c *ContextCache) Set(ctx context.Context, partition *contractx.Partition, query string, res contractx.RetrievalResult) {
	if c == nil || !res.IsWorking || NormalizeQuery(query) == "" {
		return
	}
	c.c.set(ctx, c.key(partition, query), res)
}

func (c *ContextCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.c.stats()
}
