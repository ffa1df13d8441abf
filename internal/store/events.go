package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const domainEventColumns = `id, topic, aggregate_id, payload, occurred_at, dispatched_at`

func scanDomainEvent(row interface{ Scan(...any) error }) (DomainEvent, error) {
	var e DomainEvent
	err := row.Scan(&e.ID, &e.Topic, &e.AggregateID, &e.Payload, &e.OccurredAt, &e.DispatchedAt)
	return e, err
}

// InsertDomainEventParams appends to the outbox.
type InsertDomainEventParams struct {
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
}

// InsertDomainEvent appends an event to the outbox table.
func (s *Store) InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING `+domainEventColumns,
		arg.Topic, arg.AggregateID, arg.Payload)
	return scanDomainEvent(row)
}

// ListUndispatchedEvents returns the oldest pending outbox rows.
func (s *Store) ListUndispatchedEvents(ctx context.Context, limit int32) ([]DomainEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+domainEventColumns+` FROM domain_events
		WHERE dispatched_at IS NULL
		ORDER BY occurred_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DomainEvent
	for rows.Next() {
		e, err := scanDomainEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkEventDispatched stamps an outbox row as delivered.
func (s *Store) MarkEventDispatched(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE domain_events SET dispatched_at = now() WHERE id = $1 AND dispatched_at IS NULL`, id)
	return err
}
