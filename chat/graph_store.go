package chat

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type DocumentInsight struct {
	ChunkCount       int               `json:"chunk_count"`
	Topics           []string          `json:"topics,omitempty"`
	RelatedDocuments []RelatedDocument `json:"related_documents,omitempty"`
}

type RelatedDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	SharedTopics int    `json:"shared_topics"`
}

type GraphStore interface {
	DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error)
}

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

func (s *Neo4jGraphStore) DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(docIDs) == 0 {
		return map[string]DocumentInsight{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)
		WHERE d.id IN $ids
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		WITH d, count(DISTINCT c) AS chunkCount
		OPTIONAL MATCH (d)-[:HAS_TOPIC]->(topic:Topic)
		WITH d, chunkCount, collect(DISTINCT topic.name) AS topicNames
		OPTIONAL MATCH (d)-[:HAS_TOPIC]->(shared:Topic)<-[:HAS_TOPIC]-(related:Document)
		WHERE related.id <> d.id
		WITH d, chunkCount, topicNames, related, count(DISTINCT shared) AS sharedTopics
		ORDER BY sharedTopics DESC, related.title
		WITH d, chunkCount, topicNames,
		     collect({id: related.id, title: related.title, url: related.url, shared: sharedTopics})[0..5] AS relatedRows
		RETURN d.id AS id,
		       chunkCount,
		       [t IN topicNames WHERE t IS NOT NULL] AS topics,
		       [r IN relatedRows WHERE r.id IS NOT NULL] AS relatedDocuments
	`, map[string]any{"ids": docIDs})
	if err != nil {
		return nil, fmt.Errorf("run neo4j insights query: %w", err)
	}

	insights := make(map[string]DocumentInsight, len(docIDs))
	for result.Next(ctx) {
		record := result.Record()
		id, _ := record.Get("id")
		count, _ := record.Get("chunkCount")
		topicsVal, _ := record.Get("topics")
		relatedVal, _ := record.Get("relatedDocuments")
		docID, ok := id.(string)
		if !ok {
			continue
		}
		var chunkCount int64
		switch v := count.(type) {
		case int64:
			chunkCount = v
		case int32:
			chunkCount = int64(v)
		}
		insights[docID] = DocumentInsight{
			ChunkCount:       int(chunkCount),
			Topics:           convertStringSlice(topicsVal),
			RelatedDocuments: convertRelated(relatedVal),
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j insights result error: %w", err)
	}

	return insights, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		if v, ok := value.([]string); ok {
			return v
		}
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}

func convertRelated(value any) []RelatedDocument {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}

	related := make([]RelatedDocument, 0, len(raw))
	for _, item := range raw {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := data["id"].(string)
		if id == "" {
			continue
		}
		title, _ := data["title"].(string)
		url, _ := data["url"].(string)
		shared, _ := toInt(data["shared"])
		related = append(related, RelatedDocument{ID: id, Title: title, URL: url, SharedTopics: shared})
	}
	return related
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
