package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/services"
	"github.com/xenwatch/identity-notify-service/test/mocks"
)

func seedInbox(t *testing.T, store *mocks.MockNotificationStore, recipient string, n int) {
	t.Helper()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := store.Insert(context.Background(), &domain.Notification{
			ID:          fmt.Sprintf("%s-n%d", recipient, i),
			RecipientID: recipient,
			Kind:        domain.KindPostPublished,
			SubjectType: domain.SubjectPost,
			SubjectID:   fmt.Sprintf("post-%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestInboxService_List(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		offset int
		want   int
	}{
		{name: "default_page", limit: 0, offset: 0, want: services.DefaultPageSize},
		{name: "explicit_limit", limit: 5, offset: 0, want: 5},
		{name: "limit_is_capped", limit: 1000, offset: 0, want: services.MaxPageSize},
		{name: "offset_past_end", limit: 10, offset: 500, want: 0},
	}

	store := mocks.NewMockNotificationStore()
	seedInbox(t, store, "r1", 120)
	svc := services.NewInboxService(store)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), "r1", tt.limit, tt.offset)
			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Fatal("expected empty slice, not nil")
			}
			if len(got) != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, len(got))
			}
		})
	}

	t.Run("newest_first", func(t *testing.T) {
		got, _ := svc.List(context.Background(), "r1", 2, 0)
		if !got[0].CreatedAt.After(got[1].CreatedAt) {
			t.Error("expected newest notification first")
		}
	})
}

func TestInboxService_ReadState(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockNotificationStore()
	seedInbox(t, store, "r1", 3)
	seedInbox(t, store, "r2", 1)
	svc := services.NewInboxService(store)

	if err := svc.MarkRead(ctx, "r1", "r1-n0"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, "r1", "r2-n0"); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Errorf("marking another user's notification must fail, got %v", err)
	}

	unread, err := svc.UnreadCount(ctx, "r1")
	if err != nil || unread != 2 {
		t.Errorf("expected 2 unread, got %d (%v)", unread, err)
	}

	n, err := svc.MarkAllRead(ctx, "r1")
	if err != nil || n != 2 {
		t.Errorf("expected 2 marked, got %d (%v)", n, err)
	}
	if unread, _ := svc.UnreadCount(ctx, "r2"); unread != 1 {
		t.Errorf("other inbox must be untouched, got %d unread", unread)
	}
}
