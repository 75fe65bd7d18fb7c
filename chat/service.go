// Package chat orchestrates the copilot workflow: schema-driven intent
// answers first, then hybrid retrieval and answer synthesis, with
// per-client conversation history.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/corridorhq/copilot/intent"
	"github.com/corridorhq/copilot/llm"
	"github.com/corridorhq/copilot/retrieval"
	"github.com/corridorhq/copilot/store"
)

const (
	defaultRetrievalLimit = 30
	defaultHistoryTurns   = 6
)

type Service struct {
	router      *intent.Router
	retriever   *retrieval.Retriever
	synthesizer Synthesizer
	graph       GraphStore
	store       *store.Store
	logger      *log.Logger

	retrievalLimit int
	historyTurns   int
}

type Config struct {
	RetrievalLimit int
	HistoryTurns   int
}

func NewService(router *intent.Router, retriever *retrieval.Retriever, synthesizer Synthesizer, graph GraphStore, conversations *store.Store, cfg Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	limit := cfg.RetrievalLimit
	if limit <= 0 {
		limit = defaultRetrievalLimit
	}
	turns := cfg.HistoryTurns
	if turns <= 0 {
		turns = defaultHistoryTurns
	}
	return &Service{
		router:         router,
		retriever:      retriever,
		synthesizer:    synthesizer,
		graph:          graph,
		store:          conversations,
		logger:         logger,
		retrievalLimit: limit,
		historyTurns:   turns,
	}
}

// Chat answers a single user message. Intent handlers short-circuit
// retrieval when the question maps onto the corridor schemas directly.
func (s *Service) Chat(ctx context.Context, req Request) (Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Response{}, fmt.Errorf("message cannot be empty")
	}
	if s.synthesizer == nil {
		return Response{}, fmt.Errorf("synthesizer is not configured")
	}

	conversationID := req.ConversationID
	var history []llm.Message
	if s.store != nil && req.ClientID != "" {
		if conversationID == "" {
			conv, err := s.store.Create(req.ClientID, "")
			if err != nil {
				return Response{}, fmt.Errorf("create conversation: %w", err)
			}
			conversationID = conv.ID
		}
		messages, err := s.store.Context(req.ClientID, conversationID, s.historyTurns)
		if err != nil {
			return Response{}, fmt.Errorf("conversation context: %w", err)
		}
		for _, m := range messages {
			history = append(history, llm.Message{Role: historyRole(m.Role), Content: m.Content})
		}
		if _, err := s.store.Append(req.ClientID, conversationID, "user", message); err != nil {
			return Response{}, fmt.Errorf("record user message: %w", err)
		}
	}

	if s.router != nil {
		if answer := s.router.Route(message); answer != nil {
			return s.finish(req.ClientID, conversationID, answer.Text, intentCitations(answer.Citations)), nil
		}
	}

	if s.retriever == nil {
		return Response{}, fmt.Errorf("retriever is not configured")
	}
	passages, err := s.retriever.Search(ctx, message, s.retrievalLimit)
	if err != nil {
		return Response{}, fmt.Errorf("hybrid search: %w", err)
	}

	answer, citations, err := s.synthesizer.Synthesize(ctx, message, history, passages)
	if err != nil {
		return Response{}, fmt.Errorf("synthesize answer: %w", err)
	}
	return s.finish(req.ClientID, conversationID, answer, citations), nil
}

func (s *Service) finish(clientID, conversationID, answer string, citations []Citation) Response {
	if s.store != nil && clientID != "" && conversationID != "" {
		if _, err := s.store.Append(clientID, conversationID, "assistant", answer); err != nil {
			s.logger.Printf("record assistant message: %v", err)
		}
	}
	return Response{
		Answer:         answer,
		Citations:      citations,
		ConversationID: conversationID,
	}
}

type SearchResult struct {
	Title   string          `json:"title"`
	URL     string          `json:"url"`
	Snippet string          `json:"snippet"`
	Score   float64         `json:"score"`
	Insight DocumentInsight `json:"insight"`
}

// Search exposes plain hybrid retrieval, decorated with knowledge-graph
// insights when the graph is connected.
func (s *Service) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if s.retriever == nil {
		return nil, fmt.Errorf("retriever is not configured")
	}
	passages, err := s.retriever.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	insights := map[string]DocumentInsight{}
	if s.graph != nil && len(passages) > 0 {
		docIDs := make([]string, 0, len(passages))
		for _, passage := range passages {
			docIDs = append(docIDs, passage.DocumentID)
		}
		insightMap, insightErr := s.graph.DocumentInsights(ctx, unique(docIDs))
		if insightErr != nil {
			s.logger.Printf("graph insights error: %v", insightErr)
		} else {
			insights = insightMap
		}
	}

	results := make([]SearchResult, 0, len(passages))
	for _, passage := range passages {
		results = append(results, SearchResult{
			Title:   passage.Title,
			URL:     passage.URL,
			Snippet: passage.Snippet,
			Score:   passage.Score,
			Insight: insights[passage.DocumentID],
		})
	}
	return results, nil
}

func historyRole(role string) string {
	if role == "assistant" {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

func intentCitations(citations []intent.Citation) []Citation {
	out := make([]Citation, 0, len(citations))
	for _, c := range citations {
		out = append(out, Citation{Title: c.Title, URL: c.URL, Snippet: c.Snippet})
	}
	return out
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
