package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread is a durable conversation between a user and the assistant about one
// game. Threads are append-only: nothing mutates them except message writes.
type Thread struct {
	ID        uuid.UUID `json:"id"`
	GameID    uuid.UUID `json:"game_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Messages []*Message `json:"messages,omitempty"`
}

// Message is immutable once written. CreatedAt defines the replay order for
// future model calls.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	ThreadID  uuid.UUID  `json:"thread_id"`
	SenderID  *uuid.UUID `json:"sender_id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}
