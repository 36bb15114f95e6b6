package ports

import (
	"context"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLinkedID(ctx context.Context, userID, linkedID string) error
}

// ProfileTable is the per-role profile capability. One implementation exists
// for every role table plus the shared admin directory.
type ProfileTable interface {
	Load(ctx context.Context, linkedID string) (*domain.Profile, error)
	FindByNaturalKey(ctx context.Context, user *domain.User) (*domain.Profile, error)
	Create(ctx context.Context, user *domain.User) (*domain.Profile, error)
}

type NotificationRepository interface {
	FindMatching(ctx context.Context, key domain.DedupKey) ([]domain.Notification, error)
	// Insert returns domain.ErrDuplicateNotification when the natural key is
	// already taken.
	Insert(ctx context.Context, n *domain.Notification) error

	ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

type RecipientRepository interface {
	UserIDsByRoles(ctx context.Context, roles ...domain.Role) ([]string, error)
	SchoolAdminIDs(ctx context.Context, schoolID string) ([]string, error)
	FollowerIDs(ctx context.Context, studentUserID string) ([]string, error)
	SubmissionSummary(ctx context.Context, submissionID string) (*domain.SubmissionSummary, error)
	// SchoolName returns "" for an unknown school.
	SchoolName(ctx context.Context, schoolID string) (string, error)
}

type SubscriptionRepository interface {
	ActiveSubscriptions(ctx context.Context) ([]domain.SchoolSubscription, error)
}

// ProfileCache returns (nil, nil) on a miss.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Set(ctx context.Context, userID string, profile *domain.Profile) error
	Invalidate(ctx context.Context, userID string) error
}
