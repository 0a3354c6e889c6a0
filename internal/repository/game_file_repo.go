package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
)

type GameFileRepo struct {
	pool *pgxpool.Pool
}

func NewGameFileRepo(pool *pgxpool.Pool) *GameFileRepo {
	return &GameFileRepo{pool: pool}
}

// UpsertAll writes one save's worth of files in a single transaction. A save
// replaces file contents by (game_id, filename); files absent from the save
// are left untouched.
func (r *GameFileRepo) UpsertAll(ctx context.Context, gameID uuid.UUID, files []models.GameFileInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO game_files (game_id, filename, type, code, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (game_id, filename) DO UPDATE
		SET type = EXCLUDED.type, code = EXCLUDED.code, updated_at = NOW()`

	for _, f := range files {
		if _, err := tx.Exec(ctx, query, gameID, f.Filename, f.Type, f.Code); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *GameFileRepo) ListByGame(ctx context.Context, gameID uuid.UUID) ([]*models.GameFile, error) {
	query := `SELECT game_id, filename, type, code, updated_at
		FROM game_files WHERE game_id = $1 ORDER BY filename`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.GameFile
	for rows.Next() {
		f := &models.GameFile{}
		if err := rows.Scan(&f.GameID, &f.Filename, &f.Type, &f.Code, &f.UpdatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
