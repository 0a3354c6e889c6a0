package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// UpsertByWallet returns the user owning the wallet address, creating the row
// on first login. Addresses are stored in checksummed form.
func (r *UserRepo) UpsertByWallet(ctx context.Context, address string) (*models.User, error) {
	user := &models.User{}
	query := `
		INSERT INTO users (id, wallet_address)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		RETURNING id, wallet_address, created_at`

	err := r.pool.QueryRow(ctx, query, uuid.New(), address).Scan(
		&user.ID, &user.WalletAddress, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, wallet_address, created_at FROM users WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.WalletAddress, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) GetByWallet(ctx context.Context, address string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, wallet_address, created_at FROM users WHERE wallet_address = $1`

	err := r.pool.QueryRow(ctx, query, address).Scan(&user.ID, &user.WalletAddress, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}
