package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type QdrantConfig struct {
	URL        string        `split_words:"true" default:"http://127.0.0.1:6333"`
	APIKey     string        `split_words:"true"`
	Collection string        `split_words:"true" default:"partitions"`
	Timeout    time.Duration `split_words:"true" default:"5s"`
}

// QdrantBackend serves explicit knowledge partitions. Each point carries
// "partition" and optionally "sub_partition" in its payload; the filter keeps
// results inside the requested partition.
type QdrantBackend struct {
	http       *resty.Client
	embedder   Embedder
	collection string
}

type qdrantSearchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantMatch struct {
	Value string `json:"value"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
	Status any `json:"status"`
}

func NewQdrantBackend(cfg QdrantConfig, embedder Embedder) (*QdrantBackend, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("qdrant url is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("qdrant collection is required")
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		client.SetHeader("api-key", key)
	}
	return &QdrantBackend{http: client, embedder: embedder, collection: strings.TrimSpace(cfg.Collection)}, nil
}

func (b *QdrantBackend) Name() string { return "qdrant" }

func (b *QdrantBackend) Search(ctx context.Context, q Query) ([]Match, error) {
	if q.Partition.IsZero() {
		return nil, errors.New("qdrant: partition is required")
	}
	vec, err := b.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	must := []qdrantCondition{{Key: "partition", Match: qdrantMatch{Value: strings.TrimSpace(q.Partition.Name)}}}
	if sub := strings.TrimSpace(q.Partition.Sub); sub != "" {
		must = append(must, qdrantCondition{Key: "sub_partition", Match: qdrantMatch{Value: sub}})
	}

	var out qdrantSearchResponse
	resp, err := b.http.R().
		SetContext(ctx).
		SetBody(qdrantSearchRequest{Vector: vec, Limit: q.TopK, WithPayload: true, Filter: &qdrantFilter{Must: must}}).
		SetResult(&out).
		Post("/collections/" + b.collection + "/points/search")
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("qdrant search status=%d body=%s", resp.StatusCode(), resp.String())
	}

	matches := make([]Match, 0, len(out.Result))
	for _, p := range out.Result {
		matches = append(matches, Match{
			ID:    fmt.Sprint(p.ID),
			Score: p.Score,
			Text:  payloadString(p.Payload, "text", "content"),
			Label: payloadString(p.Payload, "label", "title"),
		})
	}
	return matches, nil
}

func payloadString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
