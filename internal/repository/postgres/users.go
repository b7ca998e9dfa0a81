package postgres

import (
	"context"
	"fmt"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/pkg/database"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// ListAlertRecipients returns users whose role receives low-stock alerts.
func (r *UserRepository) ListAlertRecipients(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT id, name, email, role
		FROM users
		WHERE role = ANY($1)
		ORDER BY email ASC`

	rows, err := r.pool.Query(ctx, query, domain.AlertRecipientRoles())
	if err != nil {
		return nil, fmt.Errorf("list alert recipients: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	if users == nil {
		users = []domain.User{}
	}

	return users, nil
}
