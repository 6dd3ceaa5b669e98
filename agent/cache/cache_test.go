package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sampleOutput(text string) contractx.AgentOutput {
	out := contractx.AgentOutput{
		ResponseText:      text,
		Mood:              contractx.MoodFriendly,
		CategoriesMatched: []string{"hours"},
	}
	out.Normalize()
	return out
}

func TestResponseCacheSetThenGet(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(16, time.Hour, WithClock(clock.Now))
	rc := NewResponseCache(store, time.Hour, WithNow(clock.Now))
	ctx := context.Background()

	rc.Set(ctx, "t1", "  What are your HOURS? ", sampleOutput("9 to 5"), contractx.UsageStats{PromptTokens: 10, Rounds: 1})

	got, ok := rc.Get(ctx, "t1", "what are your hours?")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got.ResponseText != "9 to 5" {
		t.Fatalf("response = %q", got.ResponseText)
	}

	entry, ok := rc.Lookup(ctx, "t1", "what are your hours?")
	if !ok || entry.Usage.PromptTokens != 10 {
		t.Fatalf("lookup = %+v, %v", entry, ok)
	}

	if _, ok := rc.Get(ctx, "t2", "what are your hours?"); ok {
		t.Fatal("tenants must not share entries")
	}

	stats := rc.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestResponseCacheExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(16, 0, WithClock(clock.Now))
	rc := NewResponseCache(store, 10*time.Minute, WithNow(clock.Now))
	ctx := context.Background()

	rc.Set(ctx, "t1", "price list", sampleOutput("see menu"), contractx.UsageStats{})
	clock.Advance(9 * time.Minute)
	if _, ok := rc.Get(ctx, "t1", "price list"); !ok {
		t.Fatal("expected hit before ttl")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := rc.Get(ctx, "t1", "price list"); ok {
		t.Fatal("expected miss after ttl")
	}
	if store.Len() != 0 {
		t.Fatalf("expired entry not evicted, len=%d", store.Len())
	}
}

func TestResponseCacheReturnsCopies(t *testing.T) {
	t.Parallel()

	rc := NewResponseCache(NewMemoryStore(4, time.Hour), time.Hour)
	ctx := context.Background()
	rc.Set(ctx, "t", "q", sampleOutput("a"), contractx.UsageStats{})

	first, _ := rc.Get(ctx, "t", "q")
	first.CategoriesMatched[0] = "mutated"

	second, _ := rc.Get(ctx, "t", "q")
	if second.CategoriesMatched[0] != "hours" {
		t.Fatalf("cached value was mutated: %v", second.CategoriesMatched)
	}
}

func TestLazyEvictionIgnoresBackendTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryStore(4, 0, WithClock(clock.Now))
	tc := newTyped[string]("test", store, time.Minute, clock.Now)
	ctx := context.Background()

	// Written without a backend TTL; only the entry timestamp can expire it.
	raw, err := json.Marshal(entry[string]{Value: "v", InsertedAt: clock.Now()})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := store.Set(ctx, "k", raw, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "raw", []byte("not json"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if v, ok := tc.get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("get before ttl = %q, %v", v, ok)
	}
	clock.Advance(2 * time.Minute)

	if _, ok := tc.get(ctx, "k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if _, ok := tc.get(ctx, "raw"); ok {
		t.Fatal("undecodable entry must miss")
	}
	if store.Len() != 0 {
		t.Fatalf("len = %d, want 0", store.Len())
	}
}

func TestContextCacheSkipsDegradedAndIsolatesPartitions(t *testing.T) {
	t.Parallel()

	cc := NewContextCache(NewMemoryStore(16, time.Hour), 5*time.Minute)
	ctx := context.Background()
	brandA := &contractx.Partition{Name: "clinic", Sub: "brand-a"}
	brandB := &contractx.Partition{Name: "clinic", Sub: "brand-b"}

	cc.Set(ctx, brandA, "botox price", contractx.DegradedRetrieval())
	if _, ok := cc.Get(ctx, brandA, "botox price"); ok {
		t.Fatal("degraded retrieval must not be cached")
	}

	live := contractx.RetrievalResult{
		ContextText: "Botox from 4,000 THB",
		Sources:     []contractx.Source{{ID: "doc-1", Label: "pricing", RelevanceScore: 0.91}},
		IsWorking:   true,
	}
	cc.Set(ctx, brandA, "botox price", live)

	got, ok := cc.Get(ctx, brandA, "Botox Price")
	if !ok || got.ContextText != live.ContextText || len(got.Sources) != 1 {
		t.Fatalf("get = %+v, %v", got, ok)
	}
	if _, ok := cc.Get(ctx, brandB, "botox price"); ok {
		t.Fatal("partitions must not share entries")
	}
	if _, ok := cc.Get(ctx, nil, "botox price"); ok {
		t.Fatal("default namespace must not see partitioned entries")
	}

	empty := contractx.RetrievalResult{ContextText: "", Sources: []contractx.Source{}, IsWorking: true}
	cc.Set(ctx, nil, "unknown topic", empty)
	if got, ok := cc.Get(ctx, nil, "unknown topic"); !ok || !got.IsWorking {
		t.Fatal("explicit empty live result should be cached")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	ok := Config{Backend: "redis", ResponseTTL: time.Hour, ContextTTL: time.Minute, MaxEntries: 10}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := ok
	bad.ContextTTL = 2 * time.Hour
	if err := bad.Validate(); err == nil {
		t.Fatal("context ttl longer than response ttl must be rejected")
	}

	bad = ok
	bad.Backend = "memcached"
	if err := bad.Validate(); err == nil {
		t.Fatal("unknown backend must be rejected")
	}
}
