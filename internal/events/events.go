// Package events fans domain events out to kitchen and floor displays and to
// the message brokers other systems listen on.
package events

import (
	"context"
	"errors"
	"time"
)

// Rooms a display can subscribe to.
const (
	RoomKitchen = "kitchen"
	RoomFloor   = "floor"
)

// Event types.
const (
	OrderCreated          = "order.created"
	OrderUpdated          = "order.updated"
	OrderDeleted          = "order.deleted"
	TabOpened             = "tab.opened"
	TabUpdated            = "tab.updated"
	TabClosed             = "tab.closed"
	TabCancelled          = "tab.cancelled"
	TabDeleted            = "tab.deleted"
	TableUpdated          = "table.updated"
	CancellationRequested = "cancellation.requested"
	CancellationResolved  = "cancellation.resolved"
	ReturnCreated         = "return.created"
	ReturnResolved        = "return.resolved"
)

// Event is one state change. Key groups related events (the tab or table id)
// so brokers that partition by key keep them in order.
type Event struct {
	Type    string    `json:"type"`
	Room    string    `json:"room"`
	Key     string    `json:"key"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every publisher and joins their errors. One failing
// sink does not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
