package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/agent/cache"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

const snippetRunes = 280

var _ contractx.Retriever = (*Router)(nil)

// Router picks the general backend when no partition is given and the
// partition backend otherwise. A partitioned query never falls back to the
// general namespace, which would leak another brand's knowledge.
type Router struct {
	general     Backend
	partitioned Backend
	cache       *cache.ContextCache
	cfg         Config
}

func NewRouter(general, partitioned Backend, cc *cache.ContextCache, cfg Config) *Router {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Router{general: general, partitioned: partitioned, cache: cc, cfg: cfg}
}

func (r *Router) Retrieve(ctx context.Context, query string, partition *contractx.Partition) contractx.RetrievalResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return contractx.RetrievalResult{Sources: []contractx.Source{}, IsWorking: true}
	}
	if partition.IsZero() {
		partition = nil
	}

	if res, ok := r.cache.Get(ctx, partition, query); ok {
		return res
	}

	backend := r.general
	if partition != nil {
		backend = r.partitioned
	}
	if backend == nil {
		log.Warn().Err(ErrNoBackend).Str("partition", partition.Key()).Msg("retrieval degraded")
		metrics.RetrievalCalls.WithLabelValues("none", "degraded").Inc()
		return contractx.DegradedRetrieval()
	}

	q := Query{Text: query, Partition: partition, TopK: r.cfg.TopK}
	matches, err := backoff.Do(ctx, r.cfg.Retry, func(ctx context.Context) ([]Match, error) {
		if r.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
			defer cancel()
		}
		return backend.Search(ctx, q)
	}, backoff.Transient, func(attempt int, err error) {
		log.Debug().Err(err).Str("backend", backend.Name()).Int("attempt", attempt).Msg("retrieval attempt failed")
	})
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %w", contractx.ErrRetrievalDegraded, err)).
			Str("backend", backend.Name()).
			Str("partition", partition.Key()).
			Msg("retrieval degraded")
		metrics.RetrievalCalls.WithLabelValues(backend.Name(), "degraded").Inc()
		return contractx.DegradedRetrieval()
	}

	metrics.RetrievalCalls.WithLabelValues(backend.Name(), "ok").Inc()
	res := r.assemble(matches)
	r.cache.Set(ctx, partition, query, res)
	return res
}

// assemble filters by score, orders best-first and renders the context block.
func (r *Router) assemble(matches []Match) contractx.RetrievalResult {
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.Text) == "" || m.Score < r.cfg.MinScore {
			continue
		}
		kept = append(kept, m)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > r.cfg.TopK {
		kept = kept[:r.cfg.TopK]
	}

	res := contractx.RetrievalResult{Sources: make([]contractx.Source, 0, len(kept)), IsWorking: true}
	var b strings.Builder
	for _, m := range kept {
		block := strings.TrimSpace(m.Text)
		if m.Label != "" {
			block = "[" + m.Label + "] " + block
		}
		if r.cfg.MaxContextChars > 0 && b.Len()+len(block) > r.cfg.MaxContextChars {
			if b.Len() > 0 {
				break
			}
			block = truncateRunes(block, r.cfg.MaxContextChars)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		res.Sources = append(res.Sources, contractx.Source{
			ID:             m.ID,
			Label:          m.Label,
			Snippet:        truncateRunes(strings.TrimSpace(m.Text), snippetRunes),
			RelevanceScore: m.Score,
		})
	}
	res.ContextText = b.String()
	return res
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
