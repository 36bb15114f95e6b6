package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// EventHandler processes one event synchronously.
type EventHandler interface {
	Handle(ctx context.Context, evt domain.Event) (Report, error)
}

// ExpiryScanner warns admins about subscriptions entering their notice
// window. The billing period is the notification subject, so a period
// produces one warning per recipient no matter how often it runs.
type ExpiryScanner struct {
	subs    ports.SubscriptionRepository
	handler EventHandler
	logger  *zap.Logger
}

func NewExpiryScanner(subs ports.SubscriptionRepository, handler EventHandler, logger *zap.Logger) *ExpiryScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryScanner{subs: subs, handler: handler, logger: logger}
}

// Scan returns the number of subscriptions that were due a warning.
func (s *ExpiryScanner) Scan(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.subs.ActiveSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	due := 0
	for _, sub := range subs {
		if !sub.ExpiringSoon(now) {
			continue
		}
		due++
		report, err := s.handler.Handle(ctx, ExpiringEvent(sub, now))
		if err != nil {
			s.logger.Error("expiry notification failed",
				zap.String("subscription_id", sub.ID),
				zap.String("school_id", sub.SchoolID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("subscription expiring",
			zap.String("subscription_id", sub.ID),
			zap.Time("expires_at", sub.ExpiresAt),
			zap.Int("created", report.Created),
		)
	}
	return due, nil
}
