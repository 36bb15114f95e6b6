package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

type CreateOutcome int

const (
	Created CreateOutcome = iota
	SkippedDuplicate
)

func (o CreateOutcome) String() string {
	if o == Created {
		return "created"
	}
	return "skipped_duplicate"
}

// Deduplicator guarantees at most one notification per natural key.
type Deduplicator struct {
	store  ports.NotificationRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewDeduplicator(store ports.NotificationRepository, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{store: store, logger: logger, now: time.Now}
}

func (d *Deduplicator) Exists(ctx context.Context, key domain.DedupKey) (bool, error) {
	rows, err := d.store.FindMatching(ctx, key)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// CreateIfAbsent inserts n unless a notification with the same key exists.
// Losing an insert race to a concurrent writer is reported as a skip.
func (d *Deduplicator) CreateIfAbsent(ctx context.Context, n *domain.Notification) (CreateOutcome, error) {
	exists, err := d.Exists(ctx, n.Key())
	if err != nil {
		return SkippedDuplicate, err
	}
	if exists {
		return SkippedDuplicate, nil
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}

	err = d.store.Insert(ctx, n)
	if errors.Is(err, domain.ErrDuplicateNotification) {
		d.logger.Debug("notification insert lost race",
			zap.String("recipient_id", n.RecipientID),
			zap.String("kind", string(n.Kind)),
			zap.String("subject_id", n.SubjectID),
		)
		return SkippedDuplicate, nil
	}
	if err != nil {
		return SkippedDuplicate, err
	}
	return Created, nil
}
