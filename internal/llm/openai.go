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

// OpenAIClient speaks the OpenAI chat-completions wire. Both xAI and DeepSeek
// expose this protocol, so one client covers both vendors; only the base URL
// and key differ.
type OpenAIClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	return &OpenAIClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		// No overall timeout: completions stream for minutes. Dial failures
		// surface through the context instead.
		HTTP: &http.Client{Timeout: 0},
	}
}

type openAIRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) StreamCompletion(ctx context.Context, req Request) (Stream, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai wire: missing API key for %s", c.BaseURL)
	}

	body, err := json.Marshal(openAIRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai wire: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai wire: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai wire: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr openAIError
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("openai wire: %s (status %d)", apiErr.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("openai wire: unexpected status %d", resp.StatusCode)
	}

	return &openAIStream{body: resp.Body, scanner: newSSEScanner(resp.Body)}, nil
}

// maxSSELine bounds one SSE data line. Deltas are tiny, but a vendor can
// batch a whole completion into one line; the bufio default of 64KB would
// abort such a stream with ErrTooLong.
const maxSSELine = 1 << 20

func newSSEScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return scanner
}

// openAIStream parses the data:-framed SSE body. Chunks without content
// (role preludes, usage frames) are skipped rather than surfaced as empty
// deltas.
type openAIStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *openAIStream) Recv() (Delta, error) {
	if s.done {
		return Delta{}, io.EOF
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			s.done = true
			return Delta{}, io.EOF
		}
		var chunk openAIChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return Delta{Text: chunk.Choices[0].Delta.Content}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Delta{}, fmt.Errorf("openai wire: read stream: %w", err)
	}
	// Upstream closed without [DONE]; treat exhaustion as completion.
	s.done = true
	return Delta{}, io.EOF
}

func (s *openAIStream) Close() error {
	s.done = true
	return s.body.Close()
}
