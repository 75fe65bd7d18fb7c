package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresVectorStore struct {
	pool *pgxpool.Pool
}

func NewPostgresVectorStore(pool *pgxpool.Pool) *PostgresVectorStore {
	return &PostgresVectorStore{pool: pool}
}

func (s *PostgresVectorStore) SimilarPassages(ctx context.Context, embedding []float32, limit int) ([]Passage, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT
            dc.id,
            dc.document_id,
            dd.title,
            dd.url,
            dc.content,
            (dc.embedding <-> $1::vector) AS distance
        FROM doc_chunks dc
        JOIN doc_documents dd ON dd.id = dc.document_id
        ORDER BY dc.embedding <-> $1::vector
        LIMIT $2
    `, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar passages: %w", err)
	}
	defer rows.Close()

	results := make([]Passage, 0)
	for rows.Next() {
		var item Passage
		var distance float64
		if scanErr := rows.Scan(&item.ID, &item.DocumentID, &item.Title, &item.URL, &item.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar passage: %w", scanErr)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

var _ VectorSearcher = (*PostgresVectorStore)(nil)
