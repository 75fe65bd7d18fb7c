package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/corridorhq/copilot/corridor"
	"github.com/corridorhq/copilot/embeddings"
	"github.com/corridorhq/copilot/intent"
	"github.com/corridorhq/copilot/llm"
	"github.com/corridorhq/copilot/retrieval"
	"github.com/corridorhq/copilot/store"
	"github.com/corridorhq/copilot/validation"
)

type stubEmbedder struct {
	vectors [][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return s.vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubVectorSearcher struct {
	results []retrieval.Passage
}

func (s *stubVectorSearcher) SimilarPassages(ctx context.Context, embedding []float32, limit int) ([]retrieval.Passage, error) {
	return s.results, nil
}

var _ retrieval.VectorSearcher = (*stubVectorSearcher)(nil)

type stubSynthesizer struct {
	answer    string
	citations []Citation
	history   []llm.Message
	passages  []retrieval.Passage
	err       error
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, question string, history []llm.Message, passages []retrieval.Passage) (string, []Citation, error) {
	s.history = history
	s.passages = passages
	if s.err != nil {
		return "", nil, s.err
	}
	return s.answer, s.citations, nil
}

var _ Synthesizer = (*stubSynthesizer)(nil)

type stubGraph struct {
	insights map[string]DocumentInsight
	err      error
}

func (s *stubGraph) DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.insights, nil
}

var _ GraphStore = (*stubGraph)(nil)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testRetriever(passages []retrieval.Passage) *retrieval.Retriever {
	return retrieval.NewRetriever(
		&stubEmbedder{vectors: [][]float32{{0.1}}},
		&stubVectorSearcher{results: passages},
		nil,
		discard(),
	)
}

func emptyRouter(t *testing.T) *intent.Router {
	t.Helper()
	registry := corridor.NewRegistry(t.TempDir())
	return intent.NewRouter(registry, validation.New(registry), "https://docs.corridorhq.com")
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc := NewService(nil, testRetriever(nil), &stubSynthesizer{}, nil, nil, Config{}, discard())
	if _, err := svc.Chat(context.Background(), Request{Message: "   "}); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestChatRequiresSynthesizer(t *testing.T) {
	svc := NewService(nil, testRetriever(nil), nil, nil, nil, Config{}, discard())
	if _, err := svc.Chat(context.Background(), Request{Message: "question"}); err == nil {
		t.Fatal("expected error without a synthesizer")
	}
}

func TestChatSynthesizesFromRetrieval(t *testing.T) {
	passages := []retrieval.Passage{{ID: "p1", DocumentID: "d1", Title: "Doc", Text: "content", Score: 1}}
	synth := &stubSynthesizer{answer: "Answer.", citations: []Citation{{Title: "Doc"}}}
	svc := NewService(nil, testRetriever(passages), synth, nil, nil, Config{}, discard())

	resp, err := svc.Chat(context.Background(), Request{Message: "question"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Answer != "Answer." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(synth.passages) != 1 || synth.passages[0].ID != "p1" {
		t.Fatalf("expected retrieved passages handed to synthesizer, got %+v", synth.passages)
	}
	if resp.ConversationID != "" {
		t.Fatalf("no conversation expected without a client id, got %q", resp.ConversationID)
	}
}

func TestChatIntentShortCircuit(t *testing.T) {
	// createPayout answers without touching retrieval, so a nil retriever
	// proves the short circuit.
	svc := NewService(emptyRouter(t), nil, &stubSynthesizer{}, nil, nil, Config{}, discard())

	resp, err := svc.Chat(context.Background(), Request{Message: "How do I call the payout API?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(resp.Answer, "curl -X POST") {
		t.Fatalf("expected canned intent answer, got %q", resp.Answer)
	}
	if len(resp.Citations) == 0 {
		t.Fatal("expected intent citations")
	}
}

func TestChatRecordsConversation(t *testing.T) {
	passages := []retrieval.Passage{{ID: "p1", DocumentID: "d1", Text: "content", Score: 1}}
	synth := &stubSynthesizer{answer: "Answer."}
	conversations := store.New(10)
	svc := NewService(nil, testRetriever(passages), synth, nil, conversations, Config{}, discard())

	resp, err := svc.Chat(context.Background(), Request{ClientID: "client-1", Message: "first question"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("expected a conversation to be created")
	}

	conv, err := conversations.Conversation("client-1", resp.ConversationID)
	if err != nil {
		t.Fatalf("conversation lookup: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != "user" || conv.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s, %s", conv.Messages[0].Role, conv.Messages[1].Role)
	}
	if conv.Title != "first question" {
		t.Fatalf("expected auto title, got %q", conv.Title)
	}

	// A follow-up in the same conversation carries the history.
	if _, err := svc.Chat(context.Background(), Request{
		ClientID:       "client-1",
		ConversationID: resp.ConversationID,
		Message:        "follow up",
	}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(synth.history) != 2 {
		t.Fatalf("expected prior turn in history, got %d messages", len(synth.history))
	}
	if synth.history[1].Role != llm.RoleAssistant {
		t.Fatalf("unexpected history role: %s", synth.history[1].Role)
	}
}

func TestChatRejectsInvalidClientID(t *testing.T) {
	svc := NewService(nil, testRetriever(nil), &stubSynthesizer{answer: "a"}, nil, store.New(10), Config{}, discard())
	if _, err := svc.Chat(context.Background(), Request{ClientID: "bad client!", Message: "q"}); err == nil {
		t.Fatal("expected error for invalid client id")
	}
}

func TestSearchDecoratesInsights(t *testing.T) {
	passages := []retrieval.Passage{
		{ID: "p1", DocumentID: "d1", Title: "Doc 1", Text: "one", Score: 1},
		{ID: "p2", DocumentID: "d2", Title: "Doc 2", Text: "two", Score: 0.5},
	}
	graph := &stubGraph{insights: map[string]DocumentInsight{
		"d1": {ChunkCount: 3, Topics: []string{"SGD"}},
	}}
	svc := NewService(nil, testRetriever(passages), &stubSynthesizer{}, graph, nil, Config{}, discard())

	results, err := svc.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Insight.ChunkCount != 3 {
		t.Fatalf("expected insight on first result, got %+v", results[0].Insight)
	}
	if results[1].Insight.ChunkCount != 0 {
		t.Fatalf("expected zero insight for undocumented doc, got %+v", results[1].Insight)
	}
}

func TestSearchToleratesGraphFailure(t *testing.T) {
	passages := []retrieval.Passage{{ID: "p1", DocumentID: "d1", Text: "one", Score: 1}}
	svc := NewService(nil, testRetriever(passages), &stubSynthesizer{}, &stubGraph{err: errors.New("neo4j down")}, nil, Config{}, discard())

	results, err := svc.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected results despite graph failure, got %d", len(results))
	}
}
