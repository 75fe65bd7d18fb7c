// Package store keeps chat conversations in memory, isolated per client.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxPerClient = 10
	maxClientIDLength   = 100
	titleLength         = 50
	defaultTitle        = "New Chat"
)

var clientIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	ErrInvalidClientID  = errors.New("invalid client id")
	ErrConversationFull = errors.New("conversation limit reached")
	ErrNotFound         = errors.New("conversation not found")
)

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds conversations keyed by client, then conversation ID. Nothing
// is persisted; a restart clears all history.
type Store struct {
	mu            sync.Mutex
	maxPerClient  int
	conversations map[string]map[string]*Conversation
}

func New(maxPerClient int) *Store {
	if maxPerClient <= 0 {
		maxPerClient = defaultMaxPerClient
	}
	return &Store{
		maxPerClient:  maxPerClient,
		conversations: make(map[string]map[string]*Conversation),
	}
}

func validateClientID(clientID string) error {
	if clientID == "" || len(clientID) > maxClientIDLength {
		return ErrInvalidClientID
	}
	if !clientIDRE.MatchString(clientID) {
		return fmt.Errorf("%w: contains invalid characters", ErrInvalidClientID)
	}
	return nil
}

// Conversations lists a client's conversations, most recently updated first.
func (s *Store) Conversations(clientID string) ([]Conversation, error) {
	if err := validateClientID(clientID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, len(s.conversations[clientID]))
	for _, conv := range s.conversations[clientID] {
		out = append(out, cloneConversation(conv))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Conversation(clientID, conversationID string) (Conversation, error) {
	if err := validateClientID(clientID); err != nil {
		return Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[clientID][conversationID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *Store) Create(clientID, title string) (Conversation, error) {
	if err := validateClientID(clientID); err != nil {
		return Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversations[clientID] == nil {
		s.conversations[clientID] = make(map[string]*Conversation)
	}
	if len(s.conversations[clientID]) >= s.maxPerClient {
		return Conversation{}, fmt.Errorf("%w: maximum of %d conversations", ErrConversationFull, s.maxPerClient)
	}

	if title == "" {
		title = defaultTitle
	}
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[clientID][conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *Store) Rename(clientID, conversationID, title string) (Conversation, error) {
	if err := validateClientID(clientID); err != nil {
		return Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[clientID][conversationID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	return cloneConversation(conv), nil
}

func (s *Store) Delete(clientID, conversationID string) error {
	if err := validateClientID(clientID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[clientID][conversationID]; !ok {
		return ErrNotFound
	}
	delete(s.conversations[clientID], conversationID)
	return nil
}

// Append adds a message and retitles the conversation after its first user
// message.
func (s *Store) Append(clientID, conversationID, role, content string) (Conversation, error) {
	if err := validateClientID(clientID); err != nil {
		return Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[clientID][conversationID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	message := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	conv.Messages = append(conv.Messages, message)
	conv.UpdatedAt = message.CreatedAt

	if len(conv.Messages) == 1 && role == "user" && conv.Title == defaultTitle {
		conv.Title = autoTitle(content)
	}
	return cloneConversation(conv), nil
}

// Context returns the last maxTurns user/assistant pairs for prompting.
func (s *Store) Context(clientID, conversationID string, maxTurns int) ([]Message, error) {
	if err := validateClientID(clientID); err != nil {
		return nil, err
	}
	if maxTurns <= 0 {
		maxTurns = 6
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[clientID][conversationID]
	if !ok {
		return nil, nil
	}
	messages := conv.Messages
	if limit := maxTurns * 2; len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out, nil
}

func autoTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleLength {
		return strings.TrimSpace(string(runes[:titleLength])) + "..."
	}
	return strings.TrimSpace(content)
}

func cloneConversation(conv *Conversation) Conversation {
	out := *conv
	out.Messages = make([]Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out
}
