// Package retrieval routes semantic-search queries to the general knowledge
// base or to an explicit knowledge partition.
package retrieval

import (
	"context"
	"errors"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
)

// Query is what a backend receives. Partition is nil for the general backend.
type Query struct {
	Text      string
	Partition *contractx.Partition
	TopK      int
}

type Match struct {
	ID    string
	Score float64
	Text  string
	Label string
}

// Backend is one semantic-search implementation.
type Backend interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Match, error)
}

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	ErrNoBackend      = errors.New("no retrieval backend configured")
	ErrEmptyEmbedding = errors.New("embedding is empty")
)

type Config struct {
	TopK            int            `split_words:"true" default:"5"`
	MinScore        float64        `split_words:"true" default:"0.25"`
	MaxContextChars int            `split_words:"true" default:"6000"`
	AttemptTimeout  time.Duration  `split_words:"true" default:"4s"`
	Table           string         `split_words:"true" default:"knowledge_chunks"`
	Namespace       string         `split_words:"true" default:"default"`
	Retry           backoff.Policy `split_words:"true"`
}

func (c Config) Validate() error {
	if c.TopK <= 0 {
		return errors.New("retrieval top k must be > 0")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return errors.New("retrieval min score must be within [0,1]")
	}
	return nil
}
