package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Enqueue writes evt to the outbox. Pass the caller's transaction so the event
// commits together with the change it describes.
func Enqueue(ctx context.Context, db Execer, evt domain.Event) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode outbox event: %w", err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO outbox_events (id, event_type, payload) VALUES ($1, $2, $3)",
		evt.ID, string(evt.Kind), payload)
	if err != nil {
		return "", fmt.Errorf("insert outbox event: %w", err)
	}
	return evt.ID, nil
}
