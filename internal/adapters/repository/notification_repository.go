package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// NotificationRepository stores notifications behind a circuit breaker.
// Driver failures and an open breaker surface as
// domain.ErrNotificationStoreUnavailable.
type NotificationRepository struct {
	db *sql.DB
	cb *gobreaker.CircuitBreaker
}

var _ ports.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository(db *sql.DB, cb *gobreaker.CircuitBreaker) *NotificationRepository {
	return &NotificationRepository{db: db, cb: cb}
}

const notificationColumns = `id, recipient_id, kind, subject_type, subject_id, related_actor_id,
	title, message, metadata, is_read, created_at`

func (r *NotificationRepository) execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := r.cb.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotificationStoreUnavailable, err)
	}
	return res, nil
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		n        domain.Notification
		actor    sql.NullString
		metadata []byte
	)
	err := row.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.SubjectType, &n.SubjectID, &actor,
		&n.Title, &n.Message, &metadata, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	if actor.Valid {
		n.RelatedActorID = &actor.String
	}
	if len(metadata) > 0 && string(metadata) != "{}" {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return n, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return n, nil
}

func (r *NotificationRepository) query(ctx context.Context, q string, args ...any) ([]domain.Notification, error) {
	res, err := r.execute(func() (interface{}, error) {
		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []domain.Notification
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Notification), nil
}

// FindMatching compares related_actor_id only when the key carries one.
func (r *NotificationRepository) FindMatching(ctx context.Context, key domain.DedupKey) ([]domain.Notification, error) {
	var actor sql.NullString
	if key.RelatedActorID != nil {
		actor = sql.NullString{String: *key.RelatedActorID, Valid: true}
	}
	return r.query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1 AND subject_type = $2 AND subject_id = $3 AND kind = $4
		  AND ($5::text IS NULL OR related_actor_id = $5)`,
		key.RecipientID, key.SubjectType, key.SubjectID, key.Kind, actor)
}

// Insert relies on the natural-key unique index. A conflicting row yields
// domain.ErrDuplicateNotification.
func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	metadata := []byte("{}")
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = b
	}
	var actor sql.NullString
	if n.RelatedActorID != nil {
		actor = sql.NullString{String: *n.RelatedActorID, Valid: true}
	}

	res, err := r.execute(func() (interface{}, error) {
		var id string
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO notifications
				(id, recipient_id, kind, subject_type, subject_id, related_actor_id, title, message, metadata, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
			ON CONFLICT DO NOTHING
			RETURNING id`,
			n.ID, n.RecipientID, n.Kind, n.SubjectType, n.SubjectID, actor,
			n.Title, n.Message, metadata, n.CreatedAt,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return nil, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if inserted := res.(bool); !inserted {
		return domain.ErrDuplicateNotification
	}
	return nil
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	return r.query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		recipientID, limit, offset)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	res, err := r.execute(func() (interface{}, error) {
		var n int
		err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read",
			recipientID).Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	res, err := r.execute(func() (interface{}, error) {
		result, err := r.db.ExecContext(ctx,
			"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2",
			notificationID, recipientID)
		if err != nil {
			return nil, err
		}
		return result.RowsAffected()
	})
	if err != nil {
		return err
	}
	if res.(int64) == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.execute(func() (interface{}, error) {
		result, err := r.db.ExecContext(ctx,
			"UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read",
			recipientID)
		if err != nil {
			return nil, err
		}
		return result.RowsAffected()
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}
