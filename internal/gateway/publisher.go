// Package gateway fans order lifecycle events out to subscribers: events are
// published to Redis PubSub on a per-account channel, and a WebSocket hub
// relays them to connected peers. The whole package is optional; the bridge
// runs fine with it disabled.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"broker-bridgev1/internal/orders"

	goredis "github.com/go-redis/redis/v8"
)

const channelPrefix = "pub:order:"

// Publisher writes order events to Redis PubSub. Implements
// orders.EventPublisher; publishing is best-effort and never blocks the
// order path on failure.
type Publisher struct {
	rdb *goredis.Client
}

// NewPublisher wraps a connected Redis client.
func NewPublisher(rdb *goredis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishOrderEvent publishes one event on pub:order:<clientcode>.
func (p *Publisher) PublishOrderEvent(ctx context.Context, ev orders.OrderEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, channelPrefix+ev.ClientCode, payload).Err(); err != nil {
		slog.Warn("order event publish failed", "client", ev.ClientCode, "err", err)
	}
}
