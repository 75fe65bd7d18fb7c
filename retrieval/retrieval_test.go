package retrieval

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/corridorhq/copilot/embeddings"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubVectorSearcher struct {
	results []Passage
	err     error
}

func (s *stubVectorSearcher) SimilarPassages(ctx context.Context, embedding []float32, limit int) ([]Passage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var _ VectorSearcher = (*stubVectorSearcher)(nil)

type stubLexicalSearcher struct {
	results []Passage
	err     error
}

func (s *stubLexicalSearcher) MatchPassages(ctx context.Context, query string, limit int) ([]Passage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var _ LexicalSearcher = (*stubLexicalSearcher)(nil)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestFusionWeightsShiftOnIntentKeywords(t *testing.T) {
	lexical, dense := fusionWeights("what is the weather")
	if lexical != 0.5 || dense != 0.5 {
		t.Fatalf("expected balanced weights, got %v/%v", lexical, dense)
	}

	lexical, dense = fusionWeights("which fields are MANDATORY for SGD payouts")
	if lexical != 0.7 || dense != 0.3 {
		t.Fatalf("expected lexical-heavy weights, got %v/%v", lexical, dense)
	}
}

func TestNormalizeScores(t *testing.T) {
	norm := normalizeScores(map[string]float64{"a": 1, "b": 3, "c": 5})
	if norm["a"] != 0 || norm["c"] != 1 {
		t.Fatalf("unexpected min-max normalization: %v", norm)
	}
	if norm["b"] != 0.5 {
		t.Fatalf("expected midpoint 0.5, got %v", norm["b"])
	}

	// All-equal scores normalize to 1 so a single-result ranker still counts.
	norm = normalizeScores(map[string]float64{"a": 2, "b": 2})
	if norm["a"] != 1 || norm["b"] != 1 {
		t.Fatalf("expected all-equal scores to normalize to 1, got %v", norm)
	}

	if normalizeScores(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestSearchFusesBothRankers(t *testing.T) {
	r := NewRetriever(
		&stubEmbedder{vectors: [][]float32{{0.1, 0.2}}},
		&stubVectorSearcher{results: []Passage{
			{ID: "p1", DocumentID: "d1", Title: "Doc 1", Text: "dense hit", Score: 0.9},
			{ID: "p2", DocumentID: "d2", Title: "Doc 2", Text: "shared hit", Score: 0.6},
			{ID: "p3", DocumentID: "d3", Title: "Doc 3", Text: "lexical hit", Score: 0.1},
		}},
		&stubLexicalSearcher{results: []Passage{
			{ID: "p2", DocumentID: "d2", Title: "Doc 2", Text: "shared hit", Score: 3.0},
			{ID: "p3", DocumentID: "d3", Title: "Doc 3", Text: "lexical hit", Score: 1.0},
		}},
		discard(),
	)

	passages, err := r.Search(context.Background(), "payout channels", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("expected union of 3 passages, got %d", len(passages))
	}

	// p2 is only second on the dense side, but appearing in both rankings
	// fuses it above the dense-only maximum: 0.5*0.625 + 0.5*1.0 = 0.8125
	// versus p1's 0.5*1.0 = 0.5.
	if passages[0].ID != "p2" || passages[1].ID != "p1" || passages[2].ID != "p3" {
		t.Fatalf("expected order p2, p1, p3, got %s, %s, %s", passages[0].ID, passages[1].ID, passages[2].ID)
	}
	for _, p := range passages {
		if p.Snippet == "" {
			t.Fatalf("expected snippet to be populated for %s", p.ID)
		}
	}
}

func TestSearchTruncatesSnippet(t *testing.T) {
	long := strings.Repeat("a", 900)
	r := NewRetriever(
		&stubEmbedder{vectors: [][]float32{{0.1}}},
		&stubVectorSearcher{results: []Passage{{ID: "p1", Text: long, Score: 1}}},
		nil,
		discard(),
	)
	passages, err := r.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(passages))
	}
	if len(passages[0].Snippet) != 400 {
		t.Fatalf("expected 400-char snippet, got %d", len(passages[0].Snippet))
	}
}

func TestSearchToleratesLexicalFailure(t *testing.T) {
	r := NewRetriever(
		&stubEmbedder{vectors: [][]float32{{0.1}}},
		&stubVectorSearcher{results: []Passage{{ID: "p1", Text: "dense", Score: 1}}},
		&stubLexicalSearcher{err: errors.New("fts down")},
		discard(),
	)
	passages, err := r.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 1 || passages[0].ID != "p1" {
		t.Fatalf("expected dense-only results, got %v", passages)
	}
}

func TestSearchToleratesEmbeddingFailure(t *testing.T) {
	r := NewRetriever(
		&stubEmbedder{err: errors.New("embedder down")},
		&stubVectorSearcher{results: []Passage{{ID: "p1", Text: "dense", Score: 1}}},
		&stubLexicalSearcher{results: []Passage{{ID: "p2", Text: "lexical", Score: 1}}},
		discard(),
	)
	passages, err := r.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 1 || passages[0].ID != "p2" {
		t.Fatalf("expected lexical-only results, got %v", passages)
	}
}

func TestSearchLimitsResults(t *testing.T) {
	results := make([]Passage, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		results = append(results, Passage{ID: id, Text: id, Score: float64(len(results))})
	}
	r := NewRetriever(
		&stubEmbedder{vectors: [][]float32{{0.1}}},
		&stubVectorSearcher{results: results},
		nil,
		discard(),
	)
	passages, err := r.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(passages))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	r := NewRetriever(&stubEmbedder{}, &stubVectorSearcher{}, &stubLexicalSearcher{}, discard())
	passages, err := r.Search(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if passages != nil {
		t.Fatalf("expected nil for empty query, got %v", passages)
	}
}

func TestSearchRequiresASearcher(t *testing.T) {
	r := NewRetriever(&stubEmbedder{vectors: [][]float32{{0.1}}}, nil, nil, discard())
	if _, err := r.Search(context.Background(), "query", 5); err == nil {
		t.Fatal("expected error when no searchers are configured")
	}
}
