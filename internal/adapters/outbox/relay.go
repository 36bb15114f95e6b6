package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/observability"
)

const (
	// PostgreSQL NOTIFY/LISTEN configuration
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	ChannelName                  = "outbox_channel"

	// Event processing timeouts
	eventProcessTimeout     = 2 * time.Minute
	batchProcessTimeout     = 5 * time.Minute
	periodicProcessInterval = 90 * time.Second

	// Health check configuration
	healthCheckStaleThreshold = 5 * time.Minute

	// Batch processing limits
	maxEventsPerBatch = 100
)

// HandleFunc processes one decoded event. An error leaves the outbox row
// pending so the next sweep retries it; domain.ErrUnknownEvent is final.
type HandleFunc func(ctx context.Context, evt domain.Event) error

// Relay listens for PostgreSQL NOTIFY signals on the outbox channel and
// feeds the stored events to the fan-out engine.
type Relay struct {
	db            *sql.DB
	handle        HandleFunc
	listener      *pq.Listener
	dbURL         string
	dbCB          *gobreaker.CircuitBreaker
	logger        *zap.Logger
	lastProcessed atomic.Int64
	healthy       atomic.Bool
}

func NewRelay(db *sql.DB, dbURL string, handle HandleFunc, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		db:     db,
		dbURL:  dbURL,
		handle: handle,
		dbCB:   cb,
		logger: logger.With(zap.String("component", "outbox_relay")),
	}
	r.lastProcessed.Store(time.Now().UnixNano())
	r.healthy.Store(true)
	return r
}

// IsHealthy reports whether the relay loop is alive (liveness).
func (r *Relay) IsHealthy() bool {
	return r.healthy.Load()
}

// IsReady reports whether the relay can process events (readiness).
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	if time.Since(time.Unix(0, r.lastProcessed.Load())) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy.Load()
}

func (r *Relay) touch() {
	r.lastProcessed.Store(time.Now().UnixNano())
	r.healthy.Store(true)
}

// Start blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Warn("listener error", zap.Error(err))
		}
	}

	r.listener = pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer r.listener.Close()

	if err := r.listener.Listen(ChannelName); err != nil {
		return err
	}
	r.logger.Info("listening for outbox notifications", zap.String("channel", ChannelName))

	// Catch up on anything written while the relay was down.
	if err := r.ProcessPending(ctx); err != nil {
		r.logger.Error("startup backlog failed", zap.Error(err))
	}

	ticker := time.NewTicker(periodicProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down")
			return ctx.Err()

		case n := <-r.listener.Notify:
			if n == nil {
				// The listener reconnected; notifications may have been lost.
				r.healthy.Store(false)
				if err := r.ProcessPending(ctx); err == nil {
					r.touch()
				}
				continue
			}
			if err := r.ProcessByID(ctx, n.Extra); err != nil {
				r.logger.Error("failed to process event", zap.String("event_id", n.Extra), zap.Error(err))
				continue
			}
			r.touch()

		case <-ticker.C:
			go r.listener.Ping()
			if err := r.ProcessPending(ctx); err != nil {
				r.logger.Error("periodic sweep failed", zap.Error(err))
				continue
			}
			r.touch()
		}
	}
}

type record struct {
	ID        string
	EventType string
	Payload   []byte
}

// dispatch returns done=false when the row must stay pending.
func (r *Relay) dispatch(ctx context.Context, rec record) (done bool, err error) {
	var evt domain.Event
	if err := json.Unmarshal(rec.Payload, &evt); err != nil {
		r.logger.Warn("discarding undecodable outbox payload", zap.String("event_id", rec.ID), zap.Error(err))
		return true, nil
	}
	if evt.Kind == "" {
		evt.Kind = domain.EventKind(rec.EventType)
	}
	if evt.ID == "" {
		evt.ID = rec.ID
	}

	err = r.handle(ctx, evt)
	if errors.Is(err, domain.ErrUnknownEvent) {
		r.logger.Warn("discarding outbox event of unknown kind",
			zap.String("event_id", rec.ID),
			zap.String("event_type", rec.EventType),
		)
		return true, nil
	}
	if err != nil {
		observability.CaptureErr(err)
		return false, fmt.Errorf("handle %s: %w", rec.ID, err)
	}
	return true, nil
}

func markProcessed(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	return err
}

// ProcessByID handles one pending event, holding its row lock meanwhile.
func (r *Relay) ProcessByID(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	// Handler failures stay outside the breaker.
	var handleErr error
	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var rec record
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID).Scan(&rec.ID, &rec.EventType, &rec.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		done, err := r.dispatch(ctx, rec)
		if err != nil || !done {
			handleErr = err
			return nil, nil
		}
		if err := markProcessed(ctx, tx, rec.ID); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	if err != nil {
		return err
	}
	return handleErr
}

// ProcessPending sweeps up to maxEventsPerBatch pending events, oldest first.
// Events whose handling fails stay pending for the next sweep.
func (r *Relay) ProcessPending(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return nil, err
		}

		var records []record
		for rows.Next() {
			var rec record
			if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload); err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, rec := range records {
			done, err := r.dispatch(ctx, rec)
			if err != nil {
				r.logger.Error("outbox event left pending", zap.String("event_id", rec.ID), zap.Error(err))
				continue
			}
			if !done {
				continue
			}
			if err := markProcessed(ctx, tx, rec.ID); err != nil {
				return nil, err
			}
			r.logger.Debug("processed outbox event", zap.String("event_id", rec.ID))
		}

		return nil, tx.Commit()
	})
	return err
}
