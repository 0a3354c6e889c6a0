package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Append writes one conversation turn. Messages are never updated or
// reordered after this insert; created_at is the replay order.
func (r *MessageRepo) Append(ctx context.Context, threadID uuid.UUID, senderID *uuid.UUID, role, content string) (*models.Message, error) {
	m := &models.Message{
		ID:       uuid.New(),
		ThreadID: threadID,
		SenderID: senderID,
		Role:     role,
		Content:  content,
	}

	query := `INSERT INTO messages (id, thread_id, sender_id, role, content)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, m.ID, m.ThreadID, m.SenderID, m.Role, m.Content).Scan(&m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) ListByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error) {
	query := `SELECT id, thread_id, sender_id, role, content, created_at
		FROM messages WHERE thread_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
