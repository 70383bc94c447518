package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stevedore/internal/core/id"
	"stevedore/internal/domain/events"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// defaultMaxAttempts is how many deliveries the relay tries before
// parking a message as failed.
const defaultMaxAttempts = 5

// OutboxMessage represents a message in the transactional outbox.
// Processed rows are kept with processed_at set, they are the event log.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "ReceivingOrder", "Manifest"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "order.received", "manifest.closed"
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	ProcessedAt   *time.Time   `db:"processed_at"`
}

// OutboxPublisher writes domain events to the outbox table.
// It implements events.Publisher, so services stay unaware of storage.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context, the event has to commit
// or roll back together with the status change that produced it.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id.New(), event.AggregateType, event.AggregateID, event.EventType, payloadBytes, OutboxStatusPending, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// PublishBatch writes multiple events to the outbox in one round-trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, evts []events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for _, event := range evts {
		payloadBytes, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}

		batch.Queue(`
			INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id.New(), event.AggregateType, event.AggregateID, event.EventType, payloadBytes, OutboxStatusPending, now)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range evts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}

	return nil
}

// OutboxHandler delivers a single outbox message to its destination.
type OutboxHandler interface {
	// Handle processes a message and returns error if delivery failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay drains pending messages from the outbox.
// The background worker calls ProcessBatch on a fixed interval.
type OutboxRelay struct {
	txManager   *TxManager
	batchSize   int
	maxAttempts int
	handler     OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		txManager:   txManager,
		batchSize:   batchSize,
		maxAttempts: defaultMaxAttempts,
		handler:     handler,
	}
}

// ProcessBatch fetches and processes one batch of pending messages.
// The whole batch runs inside a transaction: FOR UPDATE SKIP LOCKED
// keeps concurrent relays off the same rows until the status updates
// commit. Returns the number of successfully delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "outbox.relay.batch")
	defer span.End()

	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		messages, err := r.lockPending(txCtx)
		if err != nil {
			return err
		}

		for _, msg := range messages {
			if err := r.processMessage(txCtx, msg); err != nil {
				// Delivery failures are recorded on the row, keep draining
				continue
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("outbox.processed", processed))
	return processed, nil
}

// lockPending selects due messages and locks their rows for this batch.
func (r *OutboxRelay) lockPending(ctx context.Context) ([]*OutboxMessage, error) {
	tx := r.txManager.GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("lockPending requires transaction context")
	}

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, processed_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		err := rows.Scan(
			&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}

	return messages, nil
}

// processMessage hands one message to the handler and records the outcome.
func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) error {
	tx := r.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("processMessage requires transaction context")
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent("outbox.deliver", trace.WithAttributes(
		attribute.String("event_type", msg.EventType),
		attribute.String("aggregate_id", msg.AggregateID.String()),
	))

	err := r.handler.Handle(ctx, msg)

	if err != nil {
		// Flat retry schedule, one extra minute per attempt already made.
		// Messages that exhaust their attempts park as failed for operators.
		nextRetry := time.Now().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		errStr := err.Error()

		_, updateErr := tx.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, errStr, nextRetry, r.maxAttempts, OutboxStatusFailed, msg.ID)

		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	// Processed rows stay in the table as a durable event log
	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, processed_at = $2, last_error = NULL
		WHERE id = $3
	`, OutboxStatusProcessed, now, msg.ID)

	return err
}
