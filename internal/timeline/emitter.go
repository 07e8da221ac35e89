package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// Emitter implements contracts.TimelineEmitter over Postgres.
// Each event carries an idempotency key with a unique index behind it,
// so replaying a resumed pipeline records nothing twice.
type Emitter struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewEmitter creates a new timeline emitter
func NewEmitter(pool *pgxpool.Pool, log *logger.Logger) *Emitter {
	return &Emitter{pool: pool, logger: log}
}

// Emit records one event, at most once per idempotency key
func (e *Emitter) Emit(ctx context.Context, event contracts.TimelineEvent) error {
	if event.IdempotencyKey == "" {
		return fmt.Errorf("timeline event %q missing idempotency key", event.EventType)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit.timeline_events (
			event_type, subject, correlation_id, idempotency_key, payload, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	tag, err := e.pool.Exec(ctx, query,
		event.EventType, event.Subject, event.CorrelationID,
		event.IdempotencyKey, event.Payload, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("emit timeline event failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		e.logger.WithFields(map[string]interface{}{
			"event_type":      event.EventType,
			"idempotency_key": event.IdempotencyKey,
		}).Debug("Timeline event already recorded, skipping")
		return nil
	}

	e.logger.WithFields(map[string]interface{}{
		"event_type": event.EventType,
		"subject":    event.Subject,
	}).Debug("Timeline event recorded")
	return nil
}

// ListBySubject retrieves events for one subject, oldest first
func (e *Emitter) ListBySubject(ctx context.Context, subject string) ([]contracts.TimelineEvent, error) {
	query := `
		SELECT event_type, subject, correlation_id, idempotency_key, payload, occurred_at
		FROM audit.timeline_events
		WHERE subject = $1
		ORDER BY occurred_at ASC
	`

	rows, err := e.pool.Query(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list timeline events failed: %w", err)
	}
	defer rows.Close()

	var events []contracts.TimelineEvent
	for rows.Next() {
		var ev contracts.TimelineEvent
		if err := rows.Scan(
			&ev.EventType, &ev.Subject, &ev.CorrelationID,
			&ev.IdempotencyKey, &ev.Payload, &ev.OccurredAt,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
