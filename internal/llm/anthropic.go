package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic messages API. The system prompt rides
// out-of-band as a top-level field, never as a message.
type AnthropicClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		BaseURL: "https://api.anthropic.com",
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 0},
	}
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
	System    string    `json:"system,omitempty"`
	Stream    bool      `json:"stream"`
}

// anthropicEvent covers the subset of stream events the relay cares about:
// content_block_delta carries text, message_stop terminates, error aborts.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) StreamCompletion(ctx context.Context, req Request) (Stream, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("anthropic: missing API key")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  req.Messages,
		System:    req.System,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.BaseURL, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var ev anthropicEvent
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&ev) == nil && ev.Error.Message != "" {
			return nil, fmt.Errorf("anthropic: %s (status %d)", ev.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("anthropic: unexpected status %d", resp.StatusCode)
	}

	return &anthropicStream{body: resp.Body, scanner: newSSEScanner(resp.Body)}, nil
}

type anthropicStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *anthropicStream) Recv() (Delta, error) {
	if s.done {
		return Delta{}, io.EOF
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		// "event:" lines are redundant with the typed payload; skip them.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev anthropicEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Text == "" {
				continue
			}
			return Delta{Text: ev.Delta.Text}, nil
		case "message_stop":
			s.done = true
			return Delta{}, io.EOF
		case "error":
			s.done = true
			return Delta{}, fmt.Errorf("anthropic: %s: %s", ev.Error.Type, ev.Error.Message)
		default:
			// message_start, content_block_start, ping, message_delta: no text.
			continue
		}
	}
	if err := s.scanner.Err(); err != nil {
		return Delta{}, fmt.Errorf("anthropic: read stream: %w", err)
	}
	s.done = true
	return Delta{}, io.EOF
}

func (s *anthropicStream) Close() error {
	s.done = true
	return s.body.Close()
}
