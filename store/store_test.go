package store

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCreateRejectsInvalidClientID(t *testing.T) {
	s := New(5)

	cases := []string{"", "client with spaces", "client!", strings.Repeat("a", 101)}
	for _, clientID := range cases {
		if _, err := s.Create(clientID, ""); !errors.Is(err, ErrInvalidClientID) {
			t.Fatalf("client id %q: expected ErrInvalidClientID, got %v", clientID, err)
		}
	}

	if _, err := s.Create("valid_client-1", ""); err != nil {
		t.Fatalf("unexpected error for valid client id: %v", err)
	}
}

func TestCreateEnforcesPerClientLimit(t *testing.T) {
	s := New(2)

	for i := 0; i < 2; i++ {
		if _, err := s.Create("client", ""); err != nil {
			t.Fatalf("unexpected error on create %d: %v", i, err)
		}
	}
	if _, err := s.Create("client", ""); !errors.Is(err, ErrConversationFull) {
		t.Fatalf("expected ErrConversationFull, got %v", err)
	}

	// The limit applies per client.
	if _, err := s.Create("other", ""); err != nil {
		t.Fatalf("unexpected error for second client: %v", err)
	}
}

func TestAppendAutoTitlesFirstUserMessage(t *testing.T) {
	s := New(5)
	conv, err := s.Create("client", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.Title != "New Chat" {
		t.Fatalf("expected default title, got %q", conv.Title)
	}

	long := strings.Repeat("x", 60)
	updated, err := s.Append("client", conv.ID, "user", long)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	want := strings.Repeat("x", 50) + "..."
	if updated.Title != want {
		t.Fatalf("expected auto title %q, got %q", want, updated.Title)
	}

	// A second message must not retitle.
	updated, err = s.Append("client", conv.ID, "user", "another question")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if updated.Title != want {
		t.Fatalf("title changed on second message: %q", updated.Title)
	}
}

func TestAppendAutoTitleKeepsMultibyteIntact(t *testing.T) {
	s := New(5)
	conv, err := s.Create("client", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	long := "a" + strings.Repeat("ü", 60)
	updated, err := s.Append("client", conv.ID, "user", long)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !utf8.ValidString(updated.Title) {
		t.Fatalf("title is not valid UTF-8: %q", updated.Title)
	}
	want := "a" + strings.Repeat("ü", 49) + "..."
	if updated.Title != want {
		t.Fatalf("expected auto title %q, got %q", want, updated.Title)
	}
}

func TestAppendKeepsExplicitTitle(t *testing.T) {
	s := New(5)
	conv, err := s.Create("client", "Payout onboarding")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := s.Append("client", conv.ID, "user", "how do I create a payout?")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if updated.Title != "Payout onboarding" {
		t.Fatalf("explicit title overwritten: %q", updated.Title)
	}
}

func TestContextReturnsLastTurns(t *testing.T) {
	s := New(5)
	conv, err := s.Create("client", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := s.Append("client", conv.ID, "user", "q"); err != nil {
			t.Fatalf("append user: %v", err)
		}
		if _, err := s.Append("client", conv.ID, "assistant", "a"); err != nil {
			t.Fatalf("append assistant: %v", err)
		}
	}

	messages, err := s.Context("client", conv.ID, 2)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages for 2 turns, got %d", len(messages))
	}

	// Unknown conversations yield empty context, not an error.
	messages, err = s.Context("client", "missing", 2)
	if err != nil {
		t.Fatalf("context for missing conversation: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}

func TestRenameAndDelete(t *testing.T) {
	s := New(5)
	conv, err := s.Create("client", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	renamed, err := s.Rename("client", conv.ID, "FX quotes")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Title != "FX quotes" {
		t.Fatalf("unexpected title after rename: %q", renamed.Title)
	}

	if _, err := s.Rename("client", "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete("client", conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("client", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestConversationsSortedByRecency(t *testing.T) {
	s := New(5)
	first, err := s.Create("client", "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.Create("client", "second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Append("client", first.ID, "user", "bump"); err != nil {
		t.Fatalf("append: %v", err)
	}

	list, err := s.Conversations("client")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != first.ID {
		t.Fatalf("expected most recently updated conversation first, got %q", list[0].Title)
	}
	_ = second
}

func TestCloneIsolation(t *testing.T) {
	s := New(5)
	conv, err := s.Create("client", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Append("client", conv.ID, "user", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Conversation("client", conv.ID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	got.Messages[0].Content = "mutated"

	again, err := s.Conversation("client", conv.ID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if again.Messages[0].Content != "hello" {
		t.Fatalf("stored conversation mutated through returned copy")
	}
}
