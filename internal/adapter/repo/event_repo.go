package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/sqlinline"
)

// EventRepositoryPG implements domain.EventStore.
type EventRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewEventRepository creates an event store backed by PostgreSQL.
func NewEventRepository(sql infra.SQLExecutor) *EventRepositoryPG {
	return &EventRepositoryPG{sql: sql}
}

// Insert stores a verified event. A redelivered event (same channel and timestamp) yields
// domain.ErrDuplicateOperation.
func (r *EventRepositoryPG) Insert(ctx context.Context, event *domain.InboundEvent) error {
	if event == nil {
		return errors.New("event is required")
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertEvent,
		event.IntegrationID,
		[]byte(event.Payload),
		event.Channel,
		event.RequestTS,
		event.ThreadTS,
	)
	if err := row.Scan(&event.ID, &event.Created); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrDuplicateOperation
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Get fetches one event by id.
func (r *EventRepositoryPG) Get(ctx context.Context, id int64) (*domain.InboundEvent, error) {
	event, err := scanEvent(r.sql.QueryRow(ctx, sqlinline.QSelectEvent, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select event: %w", err)
	}
	return event, nil
}

// NextUnprocessed returns the oldest pending event.
func (r *EventRepositoryPG) NextUnprocessed(ctx context.Context) (*domain.InboundEvent, error) {
	events, err := r.ListUnprocessed(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	return &events[0], nil
}

// ListUnprocessed returns pending events oldest first.
func (r *EventRepositoryPG) ListUnprocessed(ctx context.Context, limit int) ([]domain.InboundEvent, error) {
	return r.list(ctx, sqlinline.QListUnprocessedEvents, limit)
}

// ListHeld returns events parked for operator review.
func (r *EventRepositoryPG) ListHeld(ctx context.Context, limit int) ([]domain.InboundEvent, error) {
	return r.list(ctx, sqlinline.QListHeldEvents, limit)
}

func (r *EventRepositoryPG) list(ctx context.Context, query string, limit int) ([]domain.InboundEvent, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := r.sql.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.InboundEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// BeginSubmission records that a vendor submit is about to happen for the event.
func (r *EventRepositoryPG) BeginSubmission(ctx context.Context, eventID int64, key string) error {
	return r.execOne(ctx, sqlinline.QBeginSubmission, domain.ErrDuplicateOperation, eventID, key)
}

// AbortSubmission clears the in-flight marker after a failed submit.
func (r *EventRepositoryPG) AbortSubmission(ctx context.Context, eventID int64) error {
	_, err := r.sql.Exec(ctx, sqlinline.QAbortSubmission, eventID)
	if err != nil {
		return fmt.Errorf("abort submission: %w", err)
	}
	return nil
}

// Hold parks an unprocessed event so the worker skips it.
func (r *EventRepositoryPG) Hold(ctx context.Context, eventID int64, reason string) error {
	return r.execOne(ctx, sqlinline.QHoldEvent, domain.ErrNotFound, eventID, reason)
}

// Release returns a held event to the queue.
func (r *EventRepositoryPG) Release(ctx context.Context, eventID int64) error {
	return r.execOne(ctx, sqlinline.QReleaseEvent, domain.ErrNotFound, eventID)
}

// MarkProcessed stamps processed_at. It is a no-op for an already processed event.
func (r *EventRepositoryPG) MarkProcessed(ctx context.Context, eventID int64) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QMarkEventProcessed, eventID); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (r *EventRepositoryPG) execOne(ctx context.Context, query string, noRows error, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return noRows
	}
	return nil
}

func scanEvent(row pgx.Row) (*domain.InboundEvent, error) {
	var (
		event    domain.InboundEvent
		payload  []byte
		threadTS *string
	)
	if err := row.Scan(
		&event.ID,
		&event.IntegrationID,
		&payload,
		&event.Channel,
		&event.RequestTS,
		&threadTS,
		&event.JobRef,
		&event.SubmissionKey,
		&event.SubmissionStartedAt,
		&event.HeldAt,
		&event.HoldReason,
		&event.Created,
		&event.ProcessedAt,
	); err != nil {
		return nil, err
	}
	event.Payload = append([]byte(nil), payload...)
	if threadTS != nil {
		event.ThreadTS = *threadTS
	}
	return &event, nil
}

var _ domain.EventStore = (*EventRepositoryPG)(nil)
