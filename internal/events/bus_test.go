package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

type stubStore struct {
	rows []store.DomainEvent
}

func (s *stubStore) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) (store.DomainEvent, error) {
	ev := store.DomainEvent{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Topic:       arg.Topic,
		AggregateID: arg.AggregateID,
		Payload:     arg.Payload,
		OccurredAt:  pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	s.rows = append(s.rows, ev)
	return ev, nil
}

func (s *stubStore) ListUndispatchedEvents(_ context.Context, limit int32) ([]store.DomainEvent, error) {
	var out []store.DomainEvent
	for _, ev := range s.rows {
		if !ev.DispatchedAt.Valid {
			out = append(out, ev)
			if int32(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stubStore) MarkEventDispatched(_ context.Context, id pgtype.UUID) error {
	for i, ev := range s.rows {
		if ev.ID.Bytes == id.Bytes {
			s.rows[i].DispatchedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			return nil
		}
	}
	return errors.New("event not found")
}

type captureNotifier struct {
	events []store.DomainEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev store.DomainEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func toUUID(u uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: u, Valid: true}
}

func TestEmitPersistsEvent(t *testing.T) {
	st := &stubStore{}
	bus := &events.Bus{Store: st}

	payload := map[string]any{"orderId": "o-1", "total": int64(104_400)}
	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, toUUID(uuid.New()), payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, ev.Topic)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &decoded))
	require.Equal(t, "o-1", decoded["orderId"])
}

func TestEmitRejectsMissingTopicOrAggregate(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", toUUID(uuid.New()), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicCartMerged, pgtype.UUID{}, nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidRawJSON(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, toUUID(uuid.New()), []byte("{broken"))
	require.Error(t, err)
}

func TestDispatcherMarksDispatched(t *testing.T) {
	st := &stubStore{}
	bus := &events.Bus{Store: st}
	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, toUUID(uuid.New()), nil)
	require.NoError(t, err)
	_, err = bus.Emit(context.Background(), events.TopicCouponRedeemed, toUUID(uuid.New()), nil)
	require.NoError(t, err)

	sink := &captureNotifier{}
	d := &events.Dispatcher{Store: st, Notifiers: []events.Notifier{sink}, Logger: zerolog.Nop()}

	n, err := d.WorkOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, sink.events, 2)

	n, err = d.WorkOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDispatcherRetriesFailedNotifier(t *testing.T) {
	st := &stubStore{}
	bus := &events.Bus{Store: st}
	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, toUUID(uuid.New()), nil)
	require.NoError(t, err)

	failing := &captureNotifier{err: errors.New("smtp down")}
	d := &events.Dispatcher{Store: st, Notifiers: []events.Notifier{failing}, Logger: zerolog.Nop()}

	n, err := d.WorkOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	failing.err = nil
	n, err = d.WorkOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
