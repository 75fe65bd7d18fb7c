// Package knowledge mirrors the documentation corpus into Neo4j so search
// results can be enriched with related-document context.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Document struct {
	ID     string
	Slug   string
	Title  string
	URL    string
	SHA    string
	Chunks []Chunk
	Topics []Topic
}

type Chunk struct {
	ID    string
	Index int
	Text  string
}

// Topic is a grouping label, typically a currency code or corridor keyword
// detected in the document.
type Topic struct {
	Name string
}

func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc Document) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":    doc.ID,
		"slug":  doc.Slug,
		"title": doc.Title,
		"url":   doc.URL,
		"sha":   doc.SHA,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.slug = $slug,
			    d.title = $title,
			    d.url = $url,
			    d.sha256 = $sha,
			    d.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[r:HAS_TOPIC]->(t:Topic)
			DELETE r
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing topics: %w", err)
		}

		for _, topic := range doc.Topics {
			if topic.Name == "" {
				continue
			}
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $doc_id})
				MERGE (t:Topic {name: $topic_name})
				MERGE (d)-[:HAS_TOPIC]->(t)
			`, map[string]any{
				"doc_id":     doc.ID,
				"topic_name": topic.Name,
			}); err != nil {
				return nil, fmt.Errorf("upsert topic: %w", err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		for _, chunk := range doc.Chunks {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $doc_id})
				MERGE (c:Chunk {id: $chunk_id})
				SET c.index = $chunk_index,
				    c.text = $chunk_text
				MERGE (d)-[:HAS_CHUNK {order: $chunk_index}]->(c)
			`, map[string]any{
				"doc_id":      doc.ID,
				"chunk_id":    chunk.ID,
				"chunk_index": chunk.Index,
				"chunk_text":  chunk.Text,
			}); err != nil {
				return nil, fmt.Errorf("upsert chunk node: %w", err)
			}
		}

		return nil, nil
	})

	if err == nil {
		if _, cleanupErr := session.Run(ctx, `
			MATCH (t:Topic)
			WHERE NOT (t)<-[:HAS_TOPIC]-(:Document)
			DELETE t
		`, nil); cleanupErr != nil {
			err = cleanupErr
		}
	}

	return err
}

// Clear removes the document graph entirely.
func Clear(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MATCH (n)
		WHERE n:Document OR n:Chunk OR n:Topic
		DETACH DELETE n
	`, nil)
	if err != nil {
		return fmt.Errorf("clear document graph: %w", err)
	}
	return nil
}
