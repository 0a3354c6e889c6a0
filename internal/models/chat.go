package models

// ChatMessage is one turn of chat history as the client sends it. Extra
// storage fields the client may echo back (id, sender, timestamps) are
// accepted here and stripped before any vendor call.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ID        string `json:"id,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// SetupStreamRequest is the body of POST /chat/setup-stream.
type SetupStreamRequest struct {
	ChatHistory   []ChatMessage `json:"chatHistory"`
	SystemPrompt  string        `json:"systemPrompt,omitempty"`
	ThreadID      string        `json:"threadId"`
	SelectedAgent string        `json:"selectedAgent"`
}

type SetupStreamResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}
