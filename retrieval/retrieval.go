// Package retrieval runs hybrid lexical plus dense search over the
// documentation corpus and fuses the two rankings into one list.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/corridorhq/copilot/embeddings"
)

const (
	defaultLimit  = 30
	snippetLength = 400
)

// intentKeywords shift the fusion weights toward lexical matches, since
// field-level questions hinge on exact terms.
var intentKeywords = []string{"required", "mandatory", "fields", "payload", "validation"}

type Passage struct {
	ID         string
	DocumentID string
	Title      string
	URL        string
	Text       string
	Snippet    string
	Score      float64
}

type VectorSearcher interface {
	SimilarPassages(ctx context.Context, embedding []float32, limit int) ([]Passage, error)
}

type LexicalSearcher interface {
	MatchPassages(ctx context.Context, query string, limit int) ([]Passage, error)
}

type Retriever struct {
	embedder embeddings.Embedder
	vectors  VectorSearcher
	lexical  LexicalSearcher
	logger   *log.Logger
}

func NewRetriever(embedder embeddings.Embedder, vectors VectorSearcher, lexical LexicalSearcher, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.Default()
	}
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		logger:   logger,
	}
}

// Search runs both rankers and returns the fused top k passages.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = defaultLimit
	}

	passages := make(map[string]Passage)

	lexicalScores := make(map[string]float64)
	if r.lexical != nil {
		matches, err := r.lexical.MatchPassages(ctx, query, k)
		if err != nil {
			r.logger.Printf("lexical search failed, continuing with dense only: %v", err)
		}
		for _, p := range matches {
			lexicalScores[p.ID] = p.Score
			passages[p.ID] = p
		}
	}

	denseScores := make(map[string]float64)
	if r.vectors != nil && r.embedder != nil {
		vectors, err := r.embedder.Embed(ctx, []string{query})
		if err != nil {
			r.logger.Printf("query embedding failed, continuing with lexical only: %v", err)
		} else if len(vectors) == 0 {
			r.logger.Printf("embedder returned no vectors for query")
		} else {
			matches, err := r.vectors.SimilarPassages(ctx, vectors[0], k)
			if err != nil {
				r.logger.Printf("dense search failed, continuing with lexical only: %v", err)
			}
			for _, p := range matches {
				denseScores[p.ID] = p.Score
				if _, ok := passages[p.ID]; !ok {
					passages[p.ID] = p
				}
			}
		}
	}

	if len(passages) == 0 {
		if r.lexical == nil && r.vectors == nil {
			return nil, fmt.Errorf("no searchers configured")
		}
		return nil, nil
	}

	lexicalWeight, denseWeight := fusionWeights(query)
	combined := fuseScores(lexicalScores, denseScores, lexicalWeight, denseWeight)

	ranked := make([]Passage, 0, len(combined))
	for id, score := range combined {
		p := passages[id]
		p.Score = score
		if p.Snippet == "" {
			p.Snippet = truncateRunes(p.Text, snippetLength)
		}
		ranked = append(ranked, p)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func fusionWeights(query string) (lexical, dense float64) {
	lower := strings.ToLower(query)
	for _, keyword := range intentKeywords {
		if strings.Contains(lower, keyword) {
			return 0.7, 0.3
		}
	}
	return 0.5, 0.5
}

// fuseScores min-max normalizes each ranking, then merges the union of
// passages with the given weights.
func fuseScores(lexical, dense map[string]float64, lexicalWeight, denseWeight float64) map[string]float64 {
	normLexical := normalizeScores(lexical)
	normDense := normalizeScores(dense)
	combined := make(map[string]float64, len(normLexical)+len(normDense))
	for id, score := range normLexical {
		combined[id] = score * lexicalWeight
	}
	for id, score := range normDense {
		combined[id] += score * denseWeight
	}
	return combined
}

func normalizeScores(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := 0.0, 0.0
	first := true
	for _, score := range scores {
		if first {
			min, max = score, score
			first = false
			continue
		}
		if score < min {
			min = score
		}
		if score > max {
			max = score
		}
	}
	normalized := make(map[string]float64, len(scores))
	if max == min {
		for id := range scores {
			normalized[id] = 1.0
		}
		return normalized
	}
	scale := max - min
	for id, score := range scores {
		normalized[id] = (score - min) / scale
	}
	return normalized
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
