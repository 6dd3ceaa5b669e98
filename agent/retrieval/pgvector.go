package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// PgVectorBackend searches the general namespace in a pgvector table:
//
//	CREATE TABLE knowledge_chunks (
//	    id text PRIMARY KEY, namespace text, label text, content text,
//	    embedding vector(1536)
//	);
type PgVectorBackend struct {
	db        bun.IDB
	embedder  Embedder
	table     string
	namespace string
}

type chunkRow struct {
	ID      string  `bun:"id"`
	Label   string  `bun:"label"`
	Content string  `bun:"content"`
	Score   float64 `bun:"score"`
}

func NewPgVectorBackend(db bun.IDB, embedder Embedder, table, namespace string) *PgVectorBackend {
	if strings.TrimSpace(table) == "" {
		table = "knowledge_chunks"
	}
	if strings.TrimSpace(namespace) == "" {
		namespace = "default"
	}
	return &PgVectorBackend{db: db, embedder: embedder, table: table, namespace: namespace}
}

func (b *PgVectorBackend) Name() string { return "pgvector" }

func (b *PgVectorBackend) Search(ctx context.Context, q Query) ([]Match, error) {
	vec, err := b.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	var rows []chunkRow
	if err := b.query(vec, q.TopK).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}

	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, Match{ID: r.ID, Score: r.Score, Text: r.Content, Label: r.Label})
	}
	return out, nil
}

// query uses cosine distance; score is reported as similarity.
func (b *PgVectorBackend) query(vec []float32, topK int) *bun.RawQuery {
	lit := vectorLiteral(vec)
	return b.db.NewRaw(
		`SELECT id, label, content, 1 - (embedding <=> ?::vector) AS score
		FROM ? WHERE namespace = ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?`,
		lit, bun.Ident(b.table), b.namespace, lit, topK,
	)
}

func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.Grow(len(vec) * 8)
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
