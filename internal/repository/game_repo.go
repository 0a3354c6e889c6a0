package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
)

type GameRepo struct {
	pool *pgxpool.Pool
}

func NewGameRepo(pool *pgxpool.Pool) *GameRepo {
	return &GameRepo{pool: pool}
}

func (r *GameRepo) Create(ctx context.Context, g *models.Game) error {
	g.ID = uuid.New()
	g.Status = models.GameStatusDraft

	query := `INSERT INTO games (id, publisher_id, name, status)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, g.ID, g.PublisherID, g.Name, g.Status).Scan(&g.CreatedAt)
}

func (r *GameRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	g := &models.Game{}
	query := `SELECT id, publisher_id, name, genre, description, tags, status,
		cover_image_key, likes, plays, published_at, created_at
		FROM games WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.PublisherID, &g.Name, &g.Genre, &g.Description, &g.Tags, &g.Status,
		&g.CoverImageKey, &g.Likes, &g.Plays, &g.PublishedAt, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListByUser returns the user's games newest first, so the first element is
// the game the editor should open.
func (r *GameRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Game, error) {
	query := `SELECT id, publisher_id, name, genre, description, tags, status,
		cover_image_key, likes, plays, published_at, created_at
		FROM games WHERE publisher_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGames(rows)
}

func (r *GameRepo) ListPublished(ctx context.Context) ([]*models.Game, error) {
	query := `SELECT id, publisher_id, name, genre, description, tags, status,
		cover_image_key, likes, plays, published_at, created_at
		FROM games WHERE status = $1 ORDER BY published_at DESC`

	rows, err := r.pool.Query(ctx, query, models.GameStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGames(rows)
}

// Rename updates the game name. Returns pgx.ErrNoRows when the game does not
// exist or belongs to someone else.
func (r *GameRepo) Rename(ctx context.Context, id, userID uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE games SET name = $1 WHERE id = $2 AND publisher_id = $3",
		name, id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *GameRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM games WHERE id = $1 AND publisher_id = $2", id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *GameRepo) IncrementLikes(ctx context.Context, id uuid.UUID) (int, error) {
	var likes int
	err := r.pool.QueryRow(ctx,
		"UPDATE games SET likes = likes + 1 WHERE id = $1 RETURNING likes", id,
	).Scan(&likes)
	return likes, err
}

func (r *GameRepo) IncrementPlays(ctx context.Context, id uuid.UUID) (int, error) {
	var plays int
	err := r.pool.QueryRow(ctx,
		"UPDATE games SET plays = plays + 1 WHERE id = $1 RETURNING plays", id,
	).Scan(&plays)
	return plays, err
}

// MarkPublished flips the game to published with its store metadata in one
// statement, so a crashed publish job never leaves half-written metadata.
func (r *GameRepo) MarkPublished(ctx context.Context, id uuid.UUID, name, genre, description string, tags []string, coverImageKey *string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE games SET name = $1, genre = $2, description = $3, tags = $4,
			cover_image_key = $5, status = $6, published_at = $7
		WHERE id = $8`,
		name, genre, description, tags, coverImageKey, models.GameStatusPublished, at, id,
	)
	return err
}

func scanGames(rows pgx.Rows) ([]*models.Game, error) {
	var games []*models.Game
	for rows.Next() {
		g := &models.Game{}
		err := rows.Scan(
			&g.ID, &g.PublisherID, &g.Name, &g.Genre, &g.Description, &g.Tags, &g.Status,
			&g.CoverImageKey, &g.Likes, &g.Plays, &g.PublishedAt, &g.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
