// Package feed pushes ticket updates to live list views over redis pub/sub,
// the service-side equivalent of the store's live-subscription query.
// Reconnection and back-pressure stay with the subscriber.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/findesk/findesk/internal/events"
)

const channel = "findesk:tickets"

// Update is the wire form of a ticket change pushed to subscribers.
type Update struct {
	TicketID string    `json:"ticket_id"`
	Change   string    `json:"change"`
	Summary  string    `json:"summary"`
	At       time.Time `json:"at"`
}

// Feed publishes and subscribes ticket updates through redis.
type Feed struct {
	client *redis.Client
	logger *zap.Logger
}

// New builds a feed over the given redis client. A nil client disables
// publication, matching the redis-less boot path.
func New(client *redis.Client, logger *zap.Logger) *Feed {
	return &Feed{client: client, logger: logger}
}

// RegisterHandlers relays every dispatcher event into the feed channel.
func (f *Feed) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range events.AllTypes() {
		dispatcher.Subscribe(eventType, f.handleEvent)
	}
}

func (f *Feed) handleEvent(ctx context.Context, event events.Event) error {
	f.Publish(ctx, Update{
		TicketID: event.Ticket.ID,
		Change:   string(event.Type),
		Summary:  event.Summary,
		At:       event.Timestamp,
	})
	return nil
}

// Publish pushes one update. Failures are logged and swallowed; the feed is a
// non-critical side channel and must never block a persisted transition.
func (f *Feed) Publish(ctx context.Context, update Update) {
	if f == nil || f.client == nil {
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		f.logger.Error("encode feed update", zap.Error(err))
		return
	}
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		f.logger.Warn("publish feed update", zap.String("ticket_id", update.TicketID), zap.Error(err))
	}
}

// Subscribe opens a live stream of updates. The returned cancel func releases
// the underlying redis subscription.
func (f *Feed) Subscribe(ctx context.Context) (<-chan Update, func()) {
	out := make(chan Update, 16)
	if f == nil || f.client == nil {
		close(out)
		return out, func() {}
	}

	sub := f.client.Subscribe(ctx, channel)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var update Update
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				f.logger.Warn("decode feed update", zap.Error(err))
				continue
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
