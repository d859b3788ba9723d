package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comanda-pos/floor/internal/ws"
)

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(room string, event ws.Event)
}

// HubPublisher pushes events to the websocket room named by Event.Room.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, evt Event) error {
	if evt.Room == "" {
		return nil
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evt.Type, err)
	}
	p.hub.Broadcast(evt.Room, ws.Event{Type: evt.Type, Payload: payload})
	return nil
}
