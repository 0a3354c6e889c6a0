// Package llm wraps the model vendors behind one streaming-completion
// capability: given a message list and model parameters, produce incremental
// text deltas terminated by a completion signal or an error.
package llm

import "context"

// Message is the only shape a vendor ever sees: role and content, nothing
// from storage.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a fully-formed streaming completion request. System carries the
// out-of-band system prompt for vendors that take one as a parameter; for
// vendors that expect it in-band it is empty and the prompt is the first
// element of Messages.
type Request struct {
	Model     string
	Messages  []Message
	System    string
	MaxTokens int
}

// Delta is one incremental chunk of assistant output, normalized from
// whatever event shape the vendor emits.
type Delta struct {
	Text string
}

// Stream yields deltas in vendor order. Recv returns io.EOF after the
// vendor signals completion. Close releases the underlying connection and is
// safe to call at any point, including mid-stream on client disconnect.
type Stream interface {
	Recv() (Delta, error)
	Close() error
}

// Streamer is the capability each vendor client implements.
type Streamer interface {
	StreamCompletion(ctx context.Context, req Request) (Stream, error)
}
