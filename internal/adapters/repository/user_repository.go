package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type UserRepository struct {
	db *sql.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, email, name, role, linked_id, school_id, is_frozen, created_at"

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u        domain.User
		linkedID sql.NullString
		schoolID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &linkedID, &schoolID, &u.IsFrozen, &u.CreatedAt); err != nil {
		return nil, err
	}
	if linkedID.Valid {
		u.LinkedID = &linkedID.String
	}
	if schoolID.Valid {
		u.SchoolID = &schoolID.String
	}
	return &u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateLinkedID(ctx context.Context, userID, linkedID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET linked_id = $2 WHERE id = $1", userID, linkedID)
	if err != nil {
		return fmt.Errorf("update linked id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update linked id: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
