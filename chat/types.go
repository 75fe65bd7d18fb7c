package chat

type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Request struct {
	ClientID       string `json:"clientId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type Response struct {
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	ConversationID string     `json:"conversationId,omitempty"`
}
