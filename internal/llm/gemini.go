package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient adapts the generative-ai-go SDK to the Streamer capability.
// Unlike the raw-wire vendors the SDK owns the transport, so this client only
// maps message shapes and normalizes the response iterator.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) StreamCompletion(ctx context.Context, req Request) (Stream, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: empty message list")
	}

	model := c.client.GenerativeModel(req.Model)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	// Everything before the newest user turn becomes chat history; the last
	// message is the one sent.
	cs := model.StartChat()
	history := req.Messages[:len(req.Messages)-1]
	cs.History = make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	last := req.Messages[len(req.Messages)-1]
	iter := cs.SendMessageStream(ctx, genai.Text(last.Content))
	return &geminiStream{iter: iter}, nil
}

type geminiStream struct {
	iter    *genai.GenerateContentResponseIterator
	pending []string
	done    bool
}

func (s *geminiStream) Recv() (Delta, error) {
	for {
		if len(s.pending) > 0 {
			text := s.pending[0]
			s.pending = s.pending[1:]
			return Delta{Text: text}, nil
		}
		if s.done {
			return Delta{}, io.EOF
		}

		resp, err := s.iter.Next()
		if err == iterator.Done {
			s.done = true
			return Delta{}, io.EOF
		}
		if err != nil {
			s.done = true
			return Delta{}, fmt.Errorf("gemini: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok && text != "" {
					s.pending = append(s.pending, string(text))
				}
			}
		}
	}
}

// Close is a no-op: the SDK iterator is torn down by cancelling the request
// context, which the relay owns.
func (s *geminiStream) Close() error {
	s.done = true
	return nil
}
