package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"broker-bridgev1/internal/orders"
)

const sendTimeout = 10 * time.Second

// OrderAlerter turns rejected order events into alerts and fans them out to
// the configured notifiers. Implements orders.EventPublisher; all other
// event types pass through silently.
type OrderAlerter struct {
	notifiers []Notifier
}

func NewOrderAlerter(notifiers ...Notifier) *OrderAlerter {
	return &OrderAlerter{notifiers: notifiers}
}

func (a *OrderAlerter) PublishOrderEvent(ctx context.Context, ev orders.OrderEvent) {
	if ev.Type != orders.EventRejected {
		return
	}

	alert := Alert{
		Level: LevelWarning,
		Title: fmt.Sprintf("Order rejected: %s %s", ev.Exchange, ev.Symbol),
		Message: fmt.Sprintf("account %s: %s (code %s)",
			ev.ClientCode, ev.Message, ev.ErrorCode),
	}

	// Delivery runs detached so a slow channel cannot stall order handling.
	for _, n := range a.notifiers {
		n := n
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := n.Send(sendCtx, alert); err != nil {
				slog.Warn("alert delivery failed", "err", err)
			}
		}()
	}
}
