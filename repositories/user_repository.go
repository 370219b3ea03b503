package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/solidjuls/twilight-struggle-backend/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is a read-only window into the user collaborator's data:
// the engine validates player ids before writing games and resolves
// display names, nothing more.
type UserRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.User, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT u.id, u.first_name, u.last_name, COALESCE(u.playdek_name, ''),
		       c.tld_code, u.role, u.email, u.created_at
		FROM users u
		LEFT JOIN countries c ON c.id = u.country_id
		WHERE u.id = $1`

	var u models.User
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.PlaydekName,
		&u.CountryCode, &u.Role, &u.Email, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user by id %d: %w", id, err)
	}
	return &u, nil
}
