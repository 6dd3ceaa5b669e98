package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openai/openai-go"
)

// OpenAIEmbedder embeds queries through an OpenAI-compatible endpoint and
// remembers recent vectors, since retries and repeated questions are common.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int64
	cache      *lru.Cache[string, []float32]
}

func NewOpenAIEmbedder(client *openai.Client, model string, dimensions int64, cacheSize int) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("embedder: client is required")
	}
	if strings.TrimSpace(model) == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	e := &OpenAIEmbedder{client: client, model: strings.TrimSpace(model), dimensions: dimensions}
	if cacheSize > 0 {
		c, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedder: init cache: %w", err)
		}
		e.cache = c
	}
	return e, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	key := e.cacheKey(text)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v, nil
		}
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(e.dimensions)
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	if e.cache != nil {
		e.cache.Add(key, vec)
	}
	return vec, nil
}

func (e *OpenAIEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
