package orders

import (
	"context"
	"time"
)

// Order event types published on lifecycle transitions.
const (
	EventPlaced    = "PLACED"
	EventRejected  = "REJECTED"
	EventModified  = "MODIFIED"
	EventCancelled = "CANCELLED"
)

// OrderEvent is a lifecycle notification fanned out to subscribers.
type OrderEvent struct {
	Type       string    `json:"type"`
	ClientCode string    `json:"clientcode"`
	Exchange   string    `json:"exchange,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	ErrorCode  string    `json:"errorcode,omitempty"`
	TS         time.Time `json:"ts"`
}

// EventPublisher receives order lifecycle events. Implementations must not
// block the order path; publishing is best-effort.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev OrderEvent)
}

// Publishers fans one event out to several sinks in order.
type Publishers []EventPublisher

func (ps Publishers) PublishOrderEvent(ctx context.Context, ev OrderEvent) {
	for _, p := range ps {
		p.PublishOrderEvent(ctx, ev)
	}
}

func (t *Translator) publish(ctx context.Context, ev OrderEvent) {
	if t.events == nil {
		return
	}
	ev.TS = time.Now()
	t.events.PublishOrderEvent(ctx, ev)
}
