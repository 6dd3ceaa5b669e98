package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type staticEmbedder struct {
	vec   []float32
	calls int
}

func (s *staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	s.calls++
	return s.vec, nil
}

func TestQdrantSearchFiltersByPartition(t *testing.T) {
	t.Parallel()

	var got qdrantSearchRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[
			{"id":"7b1c","score":0.87,"payload":{"text":"Botox 4,000 THB","label":"pricing"}},
			{"id":42,"score":0.51,"payload":{"content":"Open daily","title":"hours"}}
		],"status":"ok"}`))
	}))
	defer srv.Close()

	b, err := NewQdrantBackend(QdrantConfig{URL: srv.URL, Collection: "kb", Timeout: time.Second}, &staticEmbedder{vec: []float32{0.1, 0.2}})
	if err != nil {
		t.Fatalf("NewQdrantBackend() error = %v", err)
	}

	matches, err := b.Search(context.Background(), Query{
		Text:      "botox",
		Partition: &contractx.Partition{Name: "clinic", Sub: "brand-a"},
		TopK:      4,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if path != "/collections/kb/points/search" {
		t.Fatalf("path = %q", path)
	}
	if got.Limit != 4 || len(got.Vector) != 2 || !got.WithPayload {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Filter.Must) != 2 || got.Filter.Must[1].Key != "sub_partition" || got.Filter.Must[1].Match.Value != "brand-a" {
		t.Fatalf("filter = %+v", got.Filter)
	}
	if len(matches) != 2 || matches[0].Label != "pricing" || matches[1].ID != "42" || matches[1].Text != "Open daily" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestQdrantSearchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, _ := NewQdrantBackend(QdrantConfig{URL: srv.URL, Collection: "kb"}, &staticEmbedder{vec: []float32{1}})
	if _, err := b.Search(context.Background(), Query{Text: "x", Partition: &contractx.Partition{Name: "p"}, TopK: 1}); err == nil {
		t.Fatal("expected error for 503")
	}
	if _, err := b.Search(context.Background(), Query{Text: "x", TopK: 1}); err == nil {
		t.Fatal("expected error without partition")
	}
}

func TestOpenAIEmbedderCachesVectors(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	e, err := NewOpenAIEmbedder(&client, "", 2, 8)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		vec, err := e.Embed(context.Background(), "botox price")
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if len(vec) != 2 || vec[0] != 0.25 || vec[1] != -0.5 {
			t.Fatalf("vec = %v", vec)
		}
	}
	if calls != 1 {
		t.Fatalf("embedding endpoint called %d times, want 1", calls)
	}
}
