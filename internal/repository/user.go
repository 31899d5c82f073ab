package repository

import (
	"context"
	"strings"

	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string) (*model.User, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES (@name, @email, @password_hash)
		RETURNING `+userColumns,
		pgx.NamedArgs{
			"name":          name,
			"email":         strings.ToLower(email),
			"password_hash": passwordHash,
		})
	if err != nil {
		return nil, err
	}
	return collectOne[model.User](rows, "users")
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = @id`,
		pgx.NamedArgs{"id": id})
	if err != nil {
		return nil, err
	}
	return collectOne[model.User](rows, "users")
}

// GetByEmail matches case-insensitively; emails are stored lowercased.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = @email`,
		pgx.NamedArgs{"email": strings.ToLower(email)})
	if err != nil {
		return nil, err
	}
	return collectOne[model.User](rows, "users")
}

func (r *UserRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) (*model.User, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE users SET name = @name, updated_at = now()
		WHERE id = @id
		RETURNING `+userColumns,
		pgx.NamedArgs{"id": id, "name": name})
	if err != nil {
		return nil, err
	}
	return collectOne[model.User](rows, "users")
}
