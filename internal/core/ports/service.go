package ports

import (
	"context"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

type RepairOutcome string

const (
	RepairAlreadyValid RepairOutcome = "already_valid"
	RepairAdopted      RepairOutcome = "adopted"
	RepairCreated      RepairOutcome = "created"
	RepairUnrepairable RepairOutcome = "unrepairable"
)

type RepairResult struct {
	Outcome   RepairOutcome `json:"outcome"`
	ProfileID string        `json:"profile_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

func (r RepairResult) Repaired() bool {
	return r.Outcome != RepairUnrepairable
}

type IdentityService interface {
	ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error)
	RepairLinkedID(ctx context.Context, userID string) (RepairResult, error)
	ResolveForLogin(ctx context.Context, userID string) (*domain.Profile, error)
}

type InboxService interface {
	List(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

// EventDispatcher accepts a committed domain event and processes it in the
// background. Dispatch only fails for events it cannot interpret.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt domain.Event) error
}
