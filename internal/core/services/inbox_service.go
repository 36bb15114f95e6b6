package services

import (
	"context"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type InboxService struct {
	store ports.NotificationRepository
}

var _ ports.InboxService = (*InboxService)(nil)

func NewInboxService(store ports.NotificationRepository) *InboxService {
	return &InboxService{store: store}
}

func (s *InboxService) List(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListForRecipient(ctx, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

func (s *InboxService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return s.store.CountUnread(ctx, recipientID)
}

// MarkRead returns domain.ErrNotificationNotFound when the notification does
// not exist or belongs to someone else.
func (s *InboxService) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	return s.store.MarkRead(ctx, recipientID, notificationID)
}

func (s *InboxService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.store.MarkAllRead(ctx, recipientID)
}
