package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
)

type stubStore struct {
	lastTopic   string
	lastPayload []byte
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	return events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.Event
}

func (c *captureScheduler) Schedule(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"purchaseId": "123"}
	ctx := context.Background()
	event, err := bus.Emit(ctx, events.TopicPurchaseCreated, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicPurchaseCreated, store.lastTopic)
	require.JSONEq(t, `{"purchaseId":"123"}`, string(store.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["purchaseId"])
}

func TestEmitRejectsMissingTopicAndAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicPurchaseUpdated, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicPurchaseCreated, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}
