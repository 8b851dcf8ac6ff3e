package wiring

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/QuixiAI/Hexis/internal/amqpbridge"
	"github.com/QuixiAI/Hexis/internal/maintenance"
	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/telemetry"
)

// BuildBridge dials RabbitMQ when RABBITMQ_ENABLED is set and returns the
// connected bridge plus the maintenance scheduler's OutboxPublisher and
// InboxFetcher closures over it. When disabled or unreachable, it returns a
// nil *amqpbridge.Bridge and closures over that nil, which degrade to
// no-ops per that package's documented contract, matching "degrades to a
// no-op when RABBITMQ_ENABLED is unset or the broker is unreachable".
func BuildBridge(log telemetry.Logger) (*amqpbridge.Bridge, maintenance.OutboxPublisher, maintenance.InboxFetcher) {
	if !getenvBool("RABBITMQ_ENABLED", false) {
		var nilBridge *amqpbridge.Bridge
		return nilBridge, outboxPublisherFor(nilBridge), inboxFetcherFor(nilBridge)
	}

	url := rabbitmqURL()
	outbox := getenv("RABBITMQ_OUTBOX_QUEUE", "hexis.outbox")
	inbox := getenv("RABBITMQ_INBOX_QUEUE", "hexis.inbox")

	bridge, err := amqpbridge.Dial(url, outbox, inbox)
	if err != nil {
		if log != nil {
			log.Warn(context.Background(), "wiring: rabbitmq unreachable, degrading to no-op bridge", "error", err.Error())
		}
		var nilBridge *amqpbridge.Bridge
		return nilBridge, outboxPublisherFor(nilBridge), inboxFetcherFor(nilBridge)
	}
	return bridge, outboxPublisherFor(bridge), inboxFetcherFor(bridge)
}

func rabbitmqURL() string {
	user := os.Getenv("RABBITMQ_USER")
	pass := os.Getenv("RABBITMQ_PASSWORD")
	vhost := getenv("RABBITMQ_VHOST", "/")
	host := getenv("RABBITMQ_MANAGEMENT_URL", "localhost:5672")
	if user == "" {
		return "amqp://" + host + vhost
	}
	return "amqp://" + user + ":" + pass + "@" + host + vhost
}

func outboxPublisherFor(bridge *amqpbridge.Bridge) maintenance.OutboxPublisher {
	return func(ctx context.Context, msg store.OutboxMessage) error {
		payload, err := json.Marshal(map[string]any{
			"id":      msg.ID,
			"kind":    msg.Kind,
			"payload": msg.Payload,
		})
		if err != nil {
			return err
		}
		return bridge.Publish(ctx, payload)
	}
}

func inboxFetcherFor(bridge *amqpbridge.Bridge) maintenance.InboxFetcher {
	return func(ctx context.Context, n int) ([]maintenance.InboundMessage, error) {
		msgs, err := bridge.PollInbox(ctx, n)
		if err != nil {
			return nil, err
		}
		out := make([]maintenance.InboundMessage, len(msgs))
		for i, m := range msgs {
			out[i] = maintenance.InboundMessage{Content: m.Content, Metadata: m.Metadata}
		}
		return out, nil
	}
}

// InboxPollInterval reads RABBITMQ_POLL_INBOX_EVERY (float seconds, default
// 1.0), matching spec.md §6.
func InboxPollInterval() time.Duration {
	return time.Duration(getenvFloat("RABBITMQ_POLL_INBOX_EVERY", 1.0) * float64(time.Second))
}
