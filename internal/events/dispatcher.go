package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bazaar/internal/obs"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// DispatchStore is the outbox surface the dispatcher drains.
type DispatchStore interface {
	ListUndispatchedEvents(ctx context.Context, limit int32) ([]store.DomainEvent, error)
	MarkEventDispatched(ctx context.Context, id pgtype.UUID) error
}

// Dispatcher drains the outbox, fanning events out to notifiers. A failed
// notifier leaves the row undispatched so the next pass retries it.
type Dispatcher struct {
	Store     DispatchStore
	Notifiers []Notifier
	BatchSize int32
	Logger    zerolog.Logger
}

// WorkOnce drains at most one batch and reports how many events it
// dispatched.
func (d *Dispatcher) WorkOnce(ctx context.Context) (int, error) {
	if d == nil || d.Store == nil {
		return 0, errors.New("events: dispatch store not configured")
	}
	limit := d.BatchSize
	if limit <= 0 {
		limit = 50
	}
	pending, err := d.Store.ListUndispatchedEvents(ctx, limit)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, ev := range pending {
		if obs.EventDispatchAttempts != nil {
			obs.EventDispatchAttempts.Inc()
		}
		if err := d.notifyAll(ctx, ev); err != nil {
			d.Logger.Warn().Err(err).Str("topic", ev.Topic).Msg("event dispatch failed")
			countDispatch(ev.Topic, "failed")
			continue
		}
		if err := d.Store.MarkEventDispatched(ctx, ev.ID); err != nil {
			return dispatched, err
		}
		countDispatch(ev.Topic, "ok")
		dispatched++
	}
	return dispatched, nil
}

func (d *Dispatcher) notifyAll(ctx context.Context, ev store.DomainEvent) error {
	var joined error
	for _, n := range d.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}

func countDispatch(topic, result string) {
	if obs.EventDispatchTotal != nil {
		obs.EventDispatchTotal.WithLabelValues(topic, result).Inc()
	}
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev store.DomainEvent) error {
	n.Logger.Info().
		Str("topic", ev.Topic).
		RawJSON("payload", ev.Payload).
		Msg("domain_event")
	return nil
}
