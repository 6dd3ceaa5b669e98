package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// CachedResponse is the value stored per (tenant, normalized query).
type CachedResponse struct {
	Output contractx.AgentOutput `json:"output"`
	Usage  contractx.UsageStats  `json:"usage"`
}

// ResponseCache short-circuits the pipeline for exact repeat questions.
type ResponseCache struct {
	prefix string
	c      *typed[CachedResponse]
}

type Option func(*options)

type options struct {
	now    func() time.Time
	prefix string
}

func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			o.prefix = trimmed
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func NewResponseCache(store Store, ttl time.Duration, opts ...Option) *ResponseCache {
	o := buildOptions(opts)
	return &ResponseCache{
		prefix: o.prefix,
		c:      newTyped[CachedResponse]("response", store, ttl, o.now),
	}
}

func (r *ResponseCache) key(tenant, query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	t := strings.TrimSpace(tenant)
	if t == "" {
		t = "default"
	}
	return r.prefix + "resp:" + t + ":" + hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached output.
func (r *ResponseCache) Get(ctx context.Context, tenant, query string) (contractx.AgentOutput, bool) {
	if r == nil || NormalizeQuery(query) == "" {
		return contractx.AgentOutput{}, false
	}
	v, ok := r.c.get(ctx, r.key(tenant, query))
	if !ok {
		return contractx.AgentOutput{}, false
	}
	return v.Output.Clone(), true
}

// Lookup is Get plus the usage stats recorded with the entry.
func (r *ResponseCache) Lookup(ctx context.Context, tenant, query string) (CachedResponse, bool) {
	if r == nil || NormalizeQuery(query) == "" {
		return CachedResponse{}, false
	}
	v, ok := r.c.get(ctx, r.key(tenant, query))
	if !ok {
		return CachedResponse{}, false
	}
	v.Output = v.Output.Clone()
	return v, true
}

func (r *ResponseCache) Set(ctx context.Context, tenant, query string, out contractx.AgentOutput, usage contractx.UsageStats) {
	if r == nil || NormalizeQuery(query) == "" {
		return
	}
	r.c.set(ctx, r.key(tenant, query), CachedResponse{Output: out.Clone(), Usage: usage})
}

func (r *ResponseCache) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	return r.c.stats()
}
