package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

type SubscriptionRepository struct {
	db *sql.DB
}

var _ ports.SubscriptionRepository = (*SubscriptionRepository)(nil)

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// ActiveSubscriptions lists active subscriptions that have not expired yet.
func (r *SubscriptionRepository) ActiveSubscriptions(ctx context.Context) ([]domain.SchoolSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ss.id, ss.school_id, sc.name, ss.frequency, ss.expires_at
		FROM school_subscriptions ss
		JOIN schools sc ON sc.id = ss.school_id
		WHERE ss.status = 'active' AND ss.expires_at > NOW()
		ORDER BY ss.expires_at`)
	if err != nil {
		return nil, fmt.Errorf("active subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.SchoolSubscription
	for rows.Next() {
		var s domain.SchoolSubscription
		if err := rows.Scan(&s.ID, &s.SchoolID, &s.SchoolName, &s.Frequency, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
