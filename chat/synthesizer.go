package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/corridorhq/copilot/llm"
	"github.com/corridorhq/copilot/retrieval"
)

const (
	maxContextPassages = 6
	maxPassageChars    = 1600
	maxCitations       = 3
	citationSnippet    = 280
	fallbackSnippet    = 400
)

// Synthesizer turns retrieved passages into a grounded answer with 1-3
// citations.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, history []llm.Message, passages []retrieval.Passage) (string, []Citation, error)
}

type LLMSynthesizer struct {
	llm    llm.Client
	logger *log.Logger
}

func NewLLMSynthesizer(client llm.Client, logger *log.Logger) *LLMSynthesizer {
	if logger == nil {
		logger = log.Default()
	}
	return &LLMSynthesizer{llm: client, logger: logger}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, question string, history []llm.Message, passages []retrieval.Passage) (string, []Citation, error) {
	if s.llm != nil {
		answer, citations, err := s.generate(ctx, question, history, passages)
		if err == nil {
			return answer, citations, nil
		}
		s.logger.Printf("llm synthesis failed, using extractive fallback: %v", err)
	}
	answer, citations := extractiveAnswer(passages)
	return answer, citations, nil
}

func (s *LLMSynthesizer) generate(ctx context.Context, question string, history []llm.Message, passages []retrieval.Passage) (string, []Citation, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: formatUserPrompt(question, passages),
	})

	var raw string
	var err error
	if structured, ok := s.llm.(llm.StructuredClient); ok {
		raw, err = structured.GenerateStructured(ctx, messages, llm.SchemaSpec{
			Name:   "citation_response",
			Schema: json.RawMessage(answerSchema),
		})
	} else {
		raw, err = s.llm.Generate(ctx, messages)
	}
	if err != nil {
		return "", nil, fmt.Errorf("llm generate: %w", err)
	}

	answer, citations, err := parseAnswer(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parse llm response: %w", err)
	}
	return answer, citations, nil
}

func systemPrompt() string {
	return "You are the developer copilot for a cross-border payments platform. Answer precisely in 2-4 sentences, then provide bullet specifics only if needed.\n" +
		"Always include 1-3 citations with titles and working links.\n" +
		"Prefer corridor-specific details. If the question is about payload fields, list the required keys tersely.\n" +
		"If unsure or documentation conflicts, say what to confirm and where.\n" +
		"Return JSON { \"answer\": \"...\", \"citations\": [ { \"title\":\"...\", \"url\":\"...\", \"snippet\":\"...\" } ] }."
}

const answerSchema = `{
  "type": "object",
  "properties": {
    "answer": {"type": "string"},
    "citations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "url": {"type": "string"},
          "snippet": {"type": "string"}
        },
        "required": ["title", "url", "snippet"]
      },
      "minItems": 1,
      "maxItems": 3
    }
  },
  "required": ["answer", "citations"]
}`

func formatUserPrompt(question string, passages []retrieval.Passage) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nContext:\n")
	for idx, passage := range passages {
		if idx >= maxContextPassages {
			break
		}
		text := truncate(passage.Text, maxPassageChars)
		sb.WriteString(fmt.Sprintf("Source %d: %s\nURL: %s\n%s\n\n", idx+1, passage.Title, passage.URL, text))
	}
	return sb.String()
}

// parseAnswer tolerates markdown code fences around the JSON body.
func parseAnswer(raw string) (string, []Citation, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var parsed struct {
		Answer    string     `json:"answer"`
		Citations []Citation `json:"citations"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return "", nil, err
	}
	if parsed.Answer == "" {
		return "", nil, fmt.Errorf("empty answer")
	}
	citations := parsed.Citations
	if len(citations) > maxCitations {
		citations = citations[:maxCitations]
	}
	return parsed.Answer, citations, nil
}

// extractiveAnswer quotes the top passage directly when no model is
// available or usable.
func extractiveAnswer(passages []retrieval.Passage) (string, []Citation) {
	if len(passages) == 0 {
		return "I could not find relevant documentation for that question.", nil
	}
	top := passages
	if len(top) > maxCitations {
		top = top[:maxCitations]
	}

	text := truncate(strings.ReplaceAll(strings.TrimSpace(top[0].Text), "\n", " "), fallbackSnippet)
	answer := strings.TrimSpace("Based on the documentation, " + text)
	if answer != "" && !strings.HasSuffix(answer, ".") {
		answer += "."
	}

	citations := make([]Citation, 0, len(top))
	for _, passage := range top {
		snippet := truncate(passage.Text, citationSnippet)
		citations = append(citations, Citation{
			Title:   passage.Title,
			URL:     passage.URL,
			Snippet: snippet,
		})
	}
	return answer, citations
}

// truncate cuts on rune boundaries so multibyte text never ends mid-sequence.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

var _ Synthesizer = (*LLMSynthesizer)(nil)
