// Package agent maps client-selectable agent names onto concrete vendor
// requests: which client to call, which model, how large the output may be,
// and where the system prompt rides.
package agent

import (
	"errors"
	"fmt"

	"github.com/loekTheDreamer/neoplay-backend/internal/llm"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
)

// ErrUnknownAgent is returned before any network call when the requested
// agent name is not in the table.
var ErrUnknownAgent = errors.New("unknown agent")

type Vendor string

const (
	VendorXAI       Vendor = "xai"
	VendorAnthropic Vendor = "anthropic"
	VendorDeepSeek  Vendor = "deepseek"
	VendorGemini    Vendor = "gemini"
)

// Agent is one row of the immutable selection table. InlineSystem marks
// vendors that expect the system prompt as the first message of the list;
// the others take it as an out-of-band request field.
type Agent struct {
	Name         string
	Vendor       Vendor
	Model        string
	MaxTokens    int
	InlineSystem bool
}

// table is fixed at startup and never mutated. One token budget per
// (vendor, model) pair; this is configuration, not per-request negotiation.
var table = map[string]Agent{
	"grok":              {Name: "grok", Vendor: VendorXAI, Model: "grok-3-beta", MaxTokens: 20000, InlineSystem: true},
	"grok-mini":         {Name: "grok-mini", Vendor: VendorXAI, Model: "grok-3-mini-beta", MaxTokens: 8192, InlineSystem: true},
	"claude-3":          {Name: "claude-3", Vendor: VendorAnthropic, Model: "claude-3-7-sonnet-20250219", MaxTokens: 20000},
	"claude-haiku":      {Name: "claude-haiku", Vendor: VendorAnthropic, Model: "claude-3-5-haiku-20241022", MaxTokens: 8192},
	"deepseek":          {Name: "deepseek", Vendor: VendorDeepSeek, Model: "deepseek-chat", MaxTokens: 8192, InlineSystem: true},
	"deepseek-reasoner": {Name: "deepseek-reasoner", Vendor: VendorDeepSeek, Model: "deepseek-reasoner", MaxTokens: 8192, InlineSystem: true},
	"gemini":            {Name: "gemini", Vendor: VendorGemini, Model: "gemini-2.0-flash", MaxTokens: 8192},
}

// Registry binds the agent table to the vendor clients wired at startup.
type Registry struct {
	streamers map[Vendor]llm.Streamer
}

func NewRegistry(streamers map[Vendor]llm.Streamer) *Registry {
	return &Registry{streamers: streamers}
}

// Resolve looks up an agent by name.
func (r *Registry) Resolve(name string) (Agent, error) {
	a, ok := table[name]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return a, nil
}

// Prepare turns a chat history into a ready-to-send vendor request. The
// history is sanitized down to role and content; storage fields the client
// echoed back (ids, sender ids, timestamps) never reach a vendor. An empty
// systemPrompt falls back to the default game-building prompt.
func (r *Registry) Prepare(name string, history []models.ChatMessage, systemPrompt string) (llm.Streamer, llm.Request, error) {
	a, err := r.Resolve(name)
	if err != nil {
		return nil, llm.Request{}, err
	}

	streamer, ok := r.streamers[a.Vendor]
	if !ok {
		return nil, llm.Request{}, fmt.Errorf("agent %q: vendor %s is not configured", name, a.Vendor)
	}

	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if a.InlineSystem {
		messages = append(messages, llm.Message{Role: models.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	req := llm.Request{
		Model:     a.Model,
		Messages:  messages,
		MaxTokens: a.MaxTokens,
	}
	if !a.InlineSystem {
		req.System = systemPrompt
	}
	return streamer, req, nil
}
