package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/services"
	"github.com/xenwatch/identity-notify-service/test/mocks"
)

func newNotification(recipient string, actor *string) *domain.Notification {
	return &domain.Notification{
		RecipientID:    recipient,
		Kind:           domain.KindReviewSubmitted,
		SubjectType:    domain.SubjectSubmission,
		SubjectID:      "sub-1",
		RelatedActorID: actor,
		Title:          "Review submitted",
	}
}

func TestDeduplicator_CreateIfAbsent(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(store *mocks.MockNotificationStore)
		first      *domain.Notification
		second     *domain.Notification
		wantSecond services.CreateOutcome
		wantRows   int
	}{
		{
			name:       "identical_key_is_stored_once",
			setup:      func(store *mocks.MockNotificationStore) {},
			first:      newNotification("r1", nil),
			second:     newNotification("r1", nil),
			wantSecond: services.SkippedDuplicate,
			wantRows:   1,
		},
		{
			name:       "different_related_actor_is_distinct",
			setup:      func(store *mocks.MockNotificationStore) {},
			first:      newNotification("r1", mocks.Ptr("a")),
			second:     newNotification("r1", mocks.Ptr("b")),
			wantSecond: services.Created,
			wantRows:   2,
		},
		{
			name:       "different_recipient_is_distinct",
			setup:      func(store *mocks.MockNotificationStore) {},
			first:      newNotification("r1", nil),
			second:     newNotification("r2", nil),
			wantSecond: services.Created,
			wantRows:   2,
		},
		{
			name: "lost_insert_race_is_a_skip",
			setup: func(store *mocks.MockNotificationStore) {
				store.HideExisting = true
			},
			first:      newNotification("r1", mocks.Ptr("a")),
			second:     newNotification("r1", mocks.Ptr("a")),
			wantSecond: services.SkippedDuplicate,
			wantRows:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			store := mocks.NewMockNotificationStore()
			tt.setup(store)
			dedup := services.NewDeduplicator(store, nil)
			ctx := context.Background()

			// ACT
			first, err := dedup.CreateIfAbsent(ctx, tt.first)
			if err != nil {
				t.Fatalf("first create: %v", err)
			}
			second, err := dedup.CreateIfAbsent(ctx, tt.second)
			if err != nil {
				t.Fatalf("second create: %v", err)
			}

			// ASSERT
			if first != services.Created {
				t.Errorf("expected first create, got %s", first)
			}
			if second != tt.wantSecond {
				t.Errorf("expected second %s, got %s", tt.wantSecond, second)
			}
			if got := len(store.All()); got != tt.wantRows {
				t.Errorf("expected %d rows, got %d", tt.wantRows, got)
			}
		})
	}
}

func TestDeduplicator_AssignsIDAndTimestamp(t *testing.T) {
	store := mocks.NewMockNotificationStore()
	dedup := services.NewDeduplicator(store, nil)
	n := newNotification("r1", nil)

	if _, err := dedup.CreateIfAbsent(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Errorf("expected id and created_at to be set, got %+v", n)
	}
}

func TestDeduplicator_StoreErrorsPropagate(t *testing.T) {
	store := mocks.NewMockNotificationStore()
	store.FindError = domain.ErrNotificationStoreUnavailable
	dedup := services.NewDeduplicator(store, nil)

	_, err := dedup.CreateIfAbsent(context.Background(), newNotification("r1", nil))
	if !errors.Is(err, domain.ErrNotificationStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if store.InsertCalls != 0 {
		t.Errorf("insert must not run after a failed check")
	}
}

func TestDeduplicator_Exists(t *testing.T) {
	store := mocks.NewMockNotificationStore()
	dedup := services.NewDeduplicator(store, nil)
	ctx := context.Background()
	n := newNotification("r1", mocks.Ptr("a"))
	if _, err := dedup.CreateIfAbsent(ctx, n); err != nil {
		t.Fatal(err)
	}

	anyActor := n.Key()
	anyActor.RelatedActorID = nil
	otherActor := n.Key()
	otherActor.RelatedActorID = mocks.Ptr("b")

	for name, tc := range map[string]struct {
		key  domain.DedupKey
		want bool
	}{
		"exact_key":       {n.Key(), true},
		"omitted_actor":   {anyActor, true},
		"different_actor": {otherActor, false},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := dedup.Exists(ctx, tc.key)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
