package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicSSE(w io.Writer, event string, payload interface{}) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func TestAnthropicClient_StreamsContentBlockDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("unexpected version header: %q", got)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.System == "" {
			t.Error("expected out-of-band system prompt")
		}
		for _, m := range req.Messages {
			if m.Role == "system" {
				t.Error("system prompt must not appear as a message")
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		anthropicSSE(w, "message_start", map[string]interface{}{"type": "message_start"})
		anthropicSSE(w, "content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"delta": map[string]string{"type": "text_delta", "text": "Hel"},
		})
		anthropicSSE(w, "content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"delta": map[string]string{"type": "text_delta", "text": "lo"},
		})
		anthropicSSE(w, "message_stop", map[string]interface{}{"type": "message_stop"})
	}))
	defer server.Close()

	client := &AnthropicClient{BaseURL: server.URL, APIKey: "test-key", HTTP: server.Client()}
	stream, err := client.StreamCompletion(context.Background(), Request{
		Model:     "claude-3-7-sonnet-20250219",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		System:    "you are neoplay",
		MaxTokens: 20000,
	})
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}
	defer stream.Close()

	var got []string
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		got = append(got, delta.Text)
	}
	if len(got) != 2 || got[0] != "Hel" || got[1] != "lo" {
		t.Errorf("unexpected deltas: %v", got)
	}
}

func TestAnthropicClient_MidStreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		anthropicSSE(w, "content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"delta": map[string]string{"type": "text_delta", "text": "Hel"},
		})
		anthropicSSE(w, "error", map[string]interface{}{
			"type":  "error",
			"error": map[string]string{"type": "overloaded_error", "message": "Overloaded"},
		})
	}))
	defer server.Close()

	client := &AnthropicClient{BaseURL: server.URL, APIKey: "test-key", HTTP: server.Client()}
	stream, err := client.StreamCompletion(context.Background(), Request{
		Model:    "claude-3-7-sonnet-20250219",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}
	defer stream.Close()

	if delta, err := stream.Recv(); err != nil || delta.Text != "Hel" {
		t.Fatalf("first Recv: got %q, %v", delta.Text, err)
	}
	if _, err := stream.Recv(); err == nil || err == io.EOF {
		t.Fatalf("expected a stream error, got %v", err)
	}
}
