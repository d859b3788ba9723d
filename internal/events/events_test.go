package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/comanda-pos/floor/internal/ws"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func sampleEvent() Event {
	return Event{
		Type:    TabClosed,
		Room:    RoomFloor,
		Key:     "tab-1",
		Payload: map[string]string{"id": "tab-1", "status": "CLOSED"},
		At:      time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC),
	}
}

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	f := Fanout{failing, nil, ok}

	err := f.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1, "a failing sink must not stop the others")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), sampleEvent()))
}

type fakeHub struct {
	room  string
	event ws.Event
	calls int
}

func (h *fakeHub) Broadcast(room string, event ws.Event) {
	h.room, h.event = room, event
	h.calls++
}

func TestHubPublisher(t *testing.T) {
	hub := &fakeHub{}
	p := NewHubPublisher(hub)

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, RoomFloor, hub.room)
	assert.Equal(t, TabClosed, hub.event.Type)
	assert.JSONEq(t, `{"id":"tab-1","status":"CLOSED"}`, string(hub.event.Payload))

	evt := sampleEvent()
	evt.Room = ""
	require.NoError(t, p.Publish(context.Background(), evt))
	assert.Equal(t, 1, hub.calls, "events without a room are not broadcast")
}

func TestHubPublisher_UnmarshalablePayload(t *testing.T) {
	evt := sampleEvent()
	evt.Payload = make(chan int)
	assert.Error(t, NewHubPublisher(&fakeHub{}).Publish(context.Background(), evt))
}

type fakeAMQP struct {
	exchange, routingKey string
	payload              any
}

func (f *fakeAMQP) PublishJSON(_ context.Context, exchange, routingKey string, payload any) error {
	f.exchange, f.routingKey, f.payload = exchange, routingKey, payload
	return nil
}

func TestAMQPPublisher_RoutesByType(t *testing.T) {
	client := &fakeAMQP{}
	require.NoError(t, NewAMQPPublisher(client, "").Publish(context.Background(), sampleEvent()))
	assert.Equal(t, DefaultExchange, client.exchange)
	assert.Equal(t, TabClosed, client.routingKey)
	assert.Equal(t, sampleEvent(), client.payload)

	require.NoError(t, NewAMQPPublisher(client, "custom").Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "custom", client.exchange)
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_KeysByEvent(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaPublisher(w).Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "tab-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TabClosed, string(msg.Headers[0].Value))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, TabClosed, got.Type)
	assert.Equal(t, "tab-1", got.Key)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "floor-events")
	assert.Equal(t, "floor-events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
