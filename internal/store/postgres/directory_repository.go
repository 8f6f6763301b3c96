package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openmaint/openmaint/internal/access"
)

// DirectoryRepository implements access.RoleDirectory over the users
// read-model table synced from the identity provider.
type DirectoryRepository struct {
	db *DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// RoleOf returns the role assigned to a user
func (r *DirectoryRepository) RoleOf(ctx context.Context, userID string) (access.Role, error) {
	var role string

	err := r.db.pool.QueryRow(ctx, `
		SELECT role FROM users WHERE id = $1
	`, userID).Scan(&role)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", access.ErrUserNotFound, userID)
		}
		return "", storeErr("get user role", err)
	}

	return access.Role(role), nil
}
