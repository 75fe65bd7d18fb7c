package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresLexicalStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLexicalStore(pool *pgxpool.Pool) *PostgresLexicalStore {
	return &PostgresLexicalStore{pool: pool}
}

func (s *PostgresLexicalStore) MatchPassages(ctx context.Context, query string, limit int) ([]Passage, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.pool.Query(ctx, `
        SELECT
            dc.id,
            dc.document_id,
            dd.title,
            dd.url,
            dc.content,
            ts_rank_cd(dc.content_tsv, q.query) AS rank
        FROM doc_chunks dc
        JOIN doc_documents dd ON dd.id = dc.document_id,
             websearch_to_tsquery('english', $1) AS q(query)
        WHERE dc.content_tsv @@ q.query
        ORDER BY rank DESC
        LIMIT $2
    `, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query matching passages: %w", err)
	}
	defer rows.Close()

	results := make([]Passage, 0)
	for rows.Next() {
		var item Passage
		var rank float32
		if scanErr := rows.Scan(&item.ID, &item.DocumentID, &item.Title, &item.URL, &item.Text, &rank); scanErr != nil {
			return nil, fmt.Errorf("scan matching passage: %w", scanErr)
		}
		item.Score = float64(rank)
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

var _ LexicalSearcher = (*PostgresLexicalStore)(nil)
