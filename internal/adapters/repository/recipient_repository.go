package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// RecipientRepository answers the audience queries of the fan-out engine.
type RecipientRepository struct {
	db *sql.DB
}

var _ ports.RecipientRepository = (*RecipientRepository)(nil)

func NewRecipientRepository(db *sql.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) ids(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *RecipientRepository) UserIDsByRoles(ctx context.Context, roles ...domain.Role) ([]string, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	ids, err := r.ids(ctx,
		"SELECT id FROM users WHERE role = ANY($1) ORDER BY created_at, id", pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("users by roles: %w", err)
	}
	return ids, nil
}

func (r *RecipientRepository) SchoolAdminIDs(ctx context.Context, schoolID string) ([]string, error) {
	ids, err := r.ids(ctx,
		"SELECT id FROM users WHERE role = $1 AND school_id = $2 ORDER BY created_at, id",
		domain.RoleSchoolAdmin, schoolID)
	if err != nil {
		return nil, fmt.Errorf("school admins: %w", err)
	}
	return ids, nil
}

func (r *RecipientRepository) FollowerIDs(ctx context.Context, studentUserID string) ([]string, error) {
	ids, err := r.ids(ctx,
		"SELECT follower_id FROM follows WHERE student_id = $1 ORDER BY created_at", studentUserID)
	if err != nil {
		return nil, fmt.Errorf("followers: %w", err)
	}
	return ids, nil
}

func (r *RecipientRepository) SubmissionSummary(ctx context.Context, submissionID string) (*domain.SubmissionSummary, error) {
	var (
		s      domain.SubmissionSummary
		rating sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.student_id, u.name, s.rating
		FROM submissions s
		JOIN users u ON u.id = s.student_id
		WHERE s.id = $1`, submissionID).Scan(&s.ID, &s.OwnerID, &s.StudentName, &rating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("submission summary: %w", err)
	}
	if rating.Valid {
		s.Rating = &rating.Float64
	}
	return &s, nil
}

func (r *RecipientRepository) SchoolName(ctx context.Context, schoolID string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, "SELECT name FROM schools WHERE id = $1", schoolID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("school name: %w", err)
	}
	return name, nil
}
