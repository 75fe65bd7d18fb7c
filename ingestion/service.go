// Package ingestion loads the documentation corpus into Postgres and the
// knowledge graph: parsing, chunking, embedding, and change detection.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pgvector/pgvector-go"

	"github.com/corridorhq/copilot/corridor"
	"github.com/corridorhq/copilot/database"
	"github.com/corridorhq/copilot/embeddings"
	"github.com/corridorhq/copilot/knowledge"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

type Service struct {
	pool      *pgxpool.Pool
	driver    neo4j.DriverWithContext
	embedder  embeddings.Embedder
	registry  *corridor.Registry
	logger    *log.Logger
	dimension int
	docsBase  string
}

func NewService(pool *pgxpool.Pool, driver neo4j.DriverWithContext, embedder embeddings.Embedder, registry *corridor.Registry, logger *log.Logger, dimension int, docsBaseURL string) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		pool:      pool,
		driver:    driver,
		embedder:  embedder,
		registry:  registry,
		logger:    logger,
		dimension: dimension,
		docsBase:  strings.TrimRight(docsBaseURL, "/"),
	}
}

// IngestDirectory walks the corpus directory and ingests every markdown and
// PDF document it finds. Failures are logged per file so one bad document
// does not abort the run.
func (s *Service) IngestDirectory(ctx context.Context, dir string) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if err := database.EnsureCorpusSchema(ctx, s.pool, s.dimension); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("corpus directory: %w", err)
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		s.logger.Printf("manifest unavailable, deriving titles and urls: %v", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk corpus directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Printf("no documents found in %s", dir)
		return nil
	}

	for _, path := range entries {
		if err := s.ingestFile(ctx, dir, path, manifest); err != nil {
			s.logger.Printf("ingest failed for %s: %v", path, err)
		}
	}

	return nil
}

func (s *Service) ingestFile(ctx context.Context, root, path string, manifest Manifest) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	relPath, relErr := filepath.Rel(root, path)
	if relErr != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)
	slug := Slugify(relPath)

	parsed, err := Parse(path, data)
	if err != nil {
		return err
	}
	if len(parsed.Chunks) == 0 {
		s.logger.Printf("skip empty document %s", relPath)
		return nil
	}

	title := parsed.Title
	url := s.docsBase + "/" + slug
	if entry, ok := manifest[relPath]; ok {
		if entry.Title != "" {
			title = entry.Title
		}
		if entry.URL != "" {
			url = entry.URL
		}
	}

	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	docID, changed, err := upsertDocument(ctx, tx, slug, title, url, hashHex)
	if err != nil {
		return err
	}

	chunkNodes := make([]knowledge.Chunk, 0, len(parsed.Chunks))

	if changed {
		vectors, embedErr := s.embedder.Embed(ctx, parsed.Chunks)
		if embedErr != nil {
			err = fmt.Errorf("generate embeddings: %w", embedErr)
			return err
		}
		if len(vectors) != len(parsed.Chunks) {
			err = fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(parsed.Chunks), len(vectors))
			return err
		}

		if _, err = tx.Exec(ctx, "DELETE FROM doc_chunks WHERE document_id = $1", docID); err != nil {
			return fmt.Errorf("clear existing chunks: %w", err)
		}

		for idx, text := range parsed.Chunks {
			chunkID := uuid.New()
			chunkNodes = append(chunkNodes, knowledge.Chunk{
				ID:    chunkID.String(),
				Index: idx,
				Text:  text,
			})

			vec := pgvector.NewVector(vectors[idx])
			if _, err = tx.Exec(ctx, `
				INSERT INTO doc_chunks (id, document_id, chunk_index, content, embedding, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			`, chunkID, docID, idx, text, vec); err != nil {
				return fmt.Errorf("insert chunk %d: %w", idx, err)
			}
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("commit transaction: %w", commitErr)
	}

	if len(chunkNodes) == 0 {
		s.logger.Printf("no updates required for %s", relPath)
		return nil
	}

	if s.driver != nil {
		doc := knowledge.Document{
			ID:     docID.String(),
			Slug:   slug,
			Title:  title,
			URL:    url,
			SHA:    hashHex,
			Chunks: chunkNodes,
			Topics: s.detectTopics(string(data)),
		}
		if err := knowledge.SyncDocument(ctx, s.driver, doc); err != nil {
			return fmt.Errorf("sync knowledge graph: %w", err)
		}
	}

	s.logger.Printf("ingested %s (%d chunks)", relPath, len(chunkNodes))
	return nil
}

// detectTopics tags a document with the corridor currencies it mentions.
func (s *Service) detectTopics(content string) []knowledge.Topic {
	if s.registry == nil {
		return nil
	}
	corridors, err := s.registry.Corridors()
	if err != nil {
		return nil
	}
	known := make(map[string]struct{}, len(corridors))
	for _, c := range corridors {
		known[c.Currency] = struct{}{}
	}

	seen := make(map[string]struct{})
	topics := make([]knowledge.Topic, 0)
	for _, code := range currencyMentions(content) {
		if _, ok := known[code]; !ok {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		topics = append(topics, knowledge.Topic{Name: code})
	}
	return topics
}

func upsertDocument(ctx context.Context, tx pgx.Tx, slug, title, url, sha string) (uuid.UUID, bool, error) {
	var (
		docID        uuid.UUID
		existingHash string
	)

	err := tx.QueryRow(ctx, "SELECT id, sha256 FROM doc_documents WHERE slug = $1", slug).Scan(&docID, &existingHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			newID := uuid.New()
			_, execErr := tx.Exec(ctx, `
				INSERT INTO doc_documents (id, slug, title, url, sha256, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			`, newID, slug, title, url, sha)
			if execErr != nil {
				return uuid.Nil, false, fmt.Errorf("insert document: %w", execErr)
			}
			return newID, true, nil
		}
		return uuid.Nil, false, fmt.Errorf("query document: %w", err)
	}

	if existingHash == sha {
		return docID, false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE doc_documents
		SET title = $2,
		    url = $3,
		    sha256 = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, docID, title, url, sha); err != nil {
		return uuid.Nil, false, fmt.Errorf("update document: %w", err)
	}

	return docID, true, nil
}

// Clear drops every ingested document from Postgres and the graph.
func (s *Service) Clear(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM doc_documents"); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if s.driver != nil {
		if err := knowledge.Clear(ctx, s.driver); err != nil {
			return err
		}
	}
	return nil
}
