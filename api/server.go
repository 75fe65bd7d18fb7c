// Package api exposes the copilot over HTTP: search, chat, payload
// validation, corpus management, and per-client conversations.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/corridorhq/copilot/chat"
	"github.com/corridorhq/copilot/ingestion"
	"github.com/corridorhq/copilot/store"
	"github.com/corridorhq/copilot/validation"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// Dependencies carries the long-lived services the handlers delegate to.
type Dependencies struct {
	Chat          *chat.Service
	Validator     *validation.Validator
	Conversations *store.Store
	Ingestion     *ingestion.Service
	CorpusDir     string
}

type Server struct {
	deps    Dependencies
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchRequest struct {
	Q string `json:"q"`
	K int    `json:"k"`
}

type searchResponse struct {
	Results []chat.SearchResult `json:"results"`
}

type validateRequest struct {
	Currency string         `json:"currency"`
	Country  string         `json:"country"`
	Method   string         `json:"method,omitempty"`
	Channel  string         `json:"channel,omitempty"`
	Payload  map[string]any `json:"payload"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

type conversationCreateRequest struct {
	Title string `json:"title"`
}

type conversationRenameRequest struct {
	Title string `json:"title"`
}

func New(deps Dependencies, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{deps: deps, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/v1/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/v1/validate", s.handleValidate).Methods(http.MethodPost)
	r.HandleFunc("/v1/ingest", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/v1/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/v1/clients/{clientId}/conversations", s.handleListConversations).Methods(http.MethodGet)
	r.HandleFunc("/v1/clients/{clientId}/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/v1/clients/{clientId}/conversations/{conversationId}", s.handleGetConversation).Methods(http.MethodGet)
	r.HandleFunc("/v1/clients/{clientId}/conversations/{conversationId}", s.handleRenameConversation).Methods(http.MethodPut)
	r.HandleFunc("/v1/clients/{clientId}/conversations/{conversationId}", s.handleDeleteConversation).Methods(http.MethodDelete)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.Q = strings.TrimSpace(req.Q)
	if req.Q == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("q is required"))
		return
	}
	limit := req.K
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.deps.Chat.Search(r.Context(), req.Q, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("search failed: %w", err))
		return
	}
	if results == nil {
		results = []chat.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}

	resp, err := s.deps.Chat.Chat(r.Context(), req)
	if err != nil {
		s.writeError(w, s.storeStatus(err, http.StatusInternalServerError), fmt.Errorf("chat failed: %w", err))
		return
	}
	if resp.Citations == nil {
		resp.Citations = []chat.Citation{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Currency) == "" || strings.TrimSpace(req.Country) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("currency and country are required"))
		return
	}
	if req.Payload == nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("payload is required"))
		return
	}

	result, err := s.deps.Validator.Validate(req.Payload, req.Currency, req.Country, req.Method, req.Channel)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("validation failed: %w", err))
		return
	}
	if result.Errors == nil {
		result.Errors = []validation.FieldError{}
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingestion == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion is not configured"))
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.deps.CorpusDir
	}

	if err := s.deps.Ingestion.IngestDirectory(r.Context(), dir); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingestion failed: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ingestion complete"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingestion == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion is not configured"))
		return
	}

	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("confirm must be true to clear data"))
		return
	}

	if err := s.deps.Ingestion.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear failed: %w", err))
		return
	}
	s.logger.Println("corpus data removed")
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "corpus cleared"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	conversations, err := s.deps.Conversations.Conversations(clientID)
	if err != nil {
		s.writeError(w, s.storeStatus(err, http.StatusInternalServerError), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]store.Conversation{"conversations": conversations})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	var req conversationCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	conversation, err := s.deps.Conversations.Create(clientID, strings.TrimSpace(req.Title))
	if err != nil {
		s.writeError(w, s.storeStatus(err, http.StatusInternalServerError), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, conversation)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conversation, err := s.deps.Conversations.Conversation(vars["clientId"], vars["conversationId"])
	if err != nil {
		s.writeError(w, s.storeStatus(err, http.StatusInternalServerError), err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req conversationRenameRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}

	conversation, err := s.deps.Conversations.Rename(vars["clientId"], vars["conversationId"], title)
	if err != nil {
		s.writeError(w, s.storeStatus(err, http.StatusInternalServerError), err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Conversations.Delete(vars["clientId"], vars["conversationId"]); err != nil {
		s.writeError(w, s.storeStatus(err, http.StatusInternalServerError), err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "conversation deleted"})
}

// storeStatus maps conversation store errors onto HTTP statuses.
func (s *Server) storeStatus(err error, fallback int) int {
	switch {
	case errors.Is(err, store.ErrInvalidClientID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConversationFull):
		return http.StatusConflict
	}
	return fallback
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
