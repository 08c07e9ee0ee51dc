package messaging

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Handler processes one decoded message.
type Handler func(ctx context.Context, msg *Message) error

// Consume subscribes to channel and runs handler for every message until ctx ends.
// Handler errors are logged and do not stop the loop.
func Consume(ctx context.Context, broker Broker, channel string, handler Handler, log *logger.Logger) error {
	msgs, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Error(err, "dropping malformed message", "channel", channel)
				continue
			}
			if err := handler(ctx, &msg); err != nil {
				log.Error(err, "message handler failed", "channel", channel, "type", msg.Type, "id", msg.ID)
			}
		}
	}
}
