package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
)

type ThreadRepo struct {
	pool *pgxpool.Pool
}

func NewThreadRepo(pool *pgxpool.Pool) *ThreadRepo {
	return &ThreadRepo{pool: pool}
}

func (r *ThreadRepo) Create(ctx context.Context, t *models.Thread) error {
	t.ID = uuid.New()

	query := `INSERT INTO threads (id, game_id, user_id)
		VALUES ($1, $2, $3) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, t.ID, t.GameID, t.UserID).Scan(&t.CreatedAt)
}

func (r *ThreadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	t := &models.Thread{}
	query := `SELECT id, game_id, user_id, created_at FROM threads WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.GameID, &t.UserID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *ThreadRepo) ListByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Thread, error) {
	query := `SELECT id, game_id, user_id, created_at
		FROM threads WHERE game_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		t := &models.Thread{}
		if err := rows.Scan(&t.ID, &t.GameID, &t.UserID, &t.CreatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}
