// Package stream implements the two-phase chat handoff: a POST stores the
// pending stream parameters in the caller's session, and a follow-up GET
// consumes them exactly once and relays the vendor token stream as SSE.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/loekTheDreamer/neoplay-backend/internal/agent"
	"github.com/loekTheDreamer/neoplay-backend/internal/llm"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/session"
)

// contextKey is the session slot holding the pending stream parameters.
// One per session; a second setup overwrites the first.
const contextKey = "streamContext"

// frameBuffer bounds how far the vendor reader may run ahead of the client.
const frameBuffer = 16

// Context is everything the stream request needs, captured at setup time.
// It lives in the session only between the request pair and is deleted on
// retrieval.
type Context struct {
	ChatHistory   []models.ChatMessage `json:"chatHistory"`
	SystemPrompt  string               `json:"systemPrompt,omitempty"`
	ThreadID      string               `json:"threadId"`
	SelectedAgent string               `json:"selectedAgent"`
	UserID        string               `json:"userId"`
}

// ConversationStore persists conversation turns. Satisfied by
// repository.MessageRepo.
type ConversationStore interface {
	Append(ctx context.Context, threadID uuid.UUID, senderID *uuid.UUID, role, content string) (*models.Message, error)
}

// Controller owns both halves of the handoff.
type Controller struct {
	sessions *session.Manager
	agents   *agent.Registry
	messages ConversationStore
}

func NewController(sessions *session.Manager, agents *agent.Registry, messages ConversationStore) *Controller {
	return &Controller{sessions: sessions, agents: agents, messages: messages}
}

// Setup validates the chat request, stores it as the session's stream
// context, and forces the session save so the cookie reaches the client
// before it opens the stream. Replies with the session id the client will
// see echoed in SSE event ids.
func (c *Controller) Setup(w http.ResponseWriter, r *http.Request, userID string) {
	var req models.SetupStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threadId is required"})
		return
	}
	if len(req.ChatHistory) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chatHistory must not be empty"})
		return
	}

	sess := c.sessions.Request(r)
	sc := Context{
		ChatHistory:   req.ChatHistory,
		SystemPrompt:  req.SystemPrompt,
		ThreadID:      req.ThreadID,
		SelectedAgent: req.SelectedAgent,
		UserID:        userID,
	}
	if err := sess.Set(contextKey, sc); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to store stream context"})
		return
	}
	if err := sess.Save(r.Context()); err != nil {
		log.Printf("Failed to save session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to store stream context"})
		return
	}

	c.sessions.WriteCookie(w, sess)
	writeJSON(w, http.StatusOK, models.SetupStreamResponse{Success: true, SessionID: sess.ID})
}

// Open consumes the session's stream context and relays the vendor stream.
// Missing context is a plain JSON 400, never an SSE response. Once the SSE
// headers are out, every failure becomes a terminal error event instead.
func (c *Controller) Open(w http.ResponseWriter, r *http.Request) {
	sess := c.sessions.Request(r)

	var sc Context
	found := false
	if !sess.IsNew() {
		var err error
		found, err = sess.Take(r.Context(), contextKey, &sc)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read stream context"})
			return
		}
	}
	if !found {
		log.Printf("Stream context not found in session %s", sess.ID)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Stream context not found. Ensure setup was called."})
		return
	}

	threadID, err := uuid.Parse(sc.ThreadID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid threadId"})
		return
	}

	// The newest turn is durable before the first token flows, so a
	// mid-stream crash never loses what the user typed.
	last := sc.ChatHistory[len(sc.ChatHistory)-1]
	var senderID *uuid.UUID
	if last.Role == models.RoleUser {
		if uid, err := uuid.Parse(sc.UserID); err == nil {
			senderID = &uid
		}
	}
	if _, err := c.messages.Append(r.Context(), threadID, senderID, last.Role, last.Content); err != nil {
		log.Printf("Failed to persist user message for thread %s: %v", threadID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to persist message"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c.relay(r.Context(), w, flusher, sess.ID, threadID, sc)
}

// relay drives the vendor stream into the response. One goroutine reads
// vendor deltas into a bounded channel; this goroutine drains it, framing
// and flushing one SSE event per delta so ordering matches vendor order.
func (c *Controller) relay(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, threadID uuid.UUID, sc Context) {
	streamer, req, err := c.agents.Prepare(sc.SelectedAgent, sc.ChatHistory, sc.SystemPrompt)
	if err != nil {
		log.Printf("Stream setup failed for session %s: %v", sessionID, err)
		writeSSEError(w, flusher, err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vendorStream, err := streamer.StreamCompletion(ctx, req)
	if err != nil {
		log.Printf("Vendor dial failed for session %s: %v", sessionID, err)
		writeSSEError(w, flusher, err)
		return
	}
	defer vendorStream.Close()

	frames := make(chan llm.Delta, frameBuffer)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			delta, err := vendorStream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	var full strings.Builder
	counter := 0
	for delta := range frames {
		if delta.Text == "" {
			continue
		}
		counter++
		full.WriteString(delta.Text)
		writeSSEEvent(w, flusher, fmt.Sprintf("%s-%d", sessionID, counter), "message", map[string]string{"content": delta.Text})
	}

	if ctx.Err() != nil {
		// Client went away. Nothing is persisted for the partial output
		// and no terminal event is owed to anyone. The vendor read error
		// caused by the cancellation is not reported either.
		log.Printf("Client disconnected mid-stream for session %s", sessionID)
		return
	}
	select {
	case err := <-readErr:
		log.Printf("Error during streaming for session %s: %v", sessionID, err)
		writeSSEError(w, flusher, err)
		return
	default:
	}

	if _, err := c.messages.Append(ctx, threadID, nil, models.RoleAssistant, full.String()); err != nil {
		log.Printf("Failed to persist assistant message for thread %s: %v", threadID, err)
		writeSSEError(w, flusher, err)
		return
	}

	writeSSEEvent(w, flusher, sessionID+"-done", "done", map[string]bool{"done": true})
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, id, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", id, event, payload)
	flusher.Flush()
}

func writeSSEError(w http.ResponseWriter, flusher http.Flusher, err error) {
	payload, _ := json.Marshal(map[string]string{
		"error":   "Streaming error occurred",
		"details": err.Error(),
	})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
