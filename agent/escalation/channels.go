package escalation

import (
	"context"
	"encoding/json"
	"fmt"
)

type qstashPublisher interface {
	Publish(ctx context.Context, body any, dedupID string) (string, error)
}

// QStashChannel pushes the notice to the hand-off webhook through QStash.
// The conversation id doubles as the dedup id, so re-delivery is harmless.
type QStashChannel struct {
	client qstashPublisher
}

func NewQStashChannel(client qstashPublisher) *QStashChannel {
	return &QStashChannel{client: client}
}

func (c *QStashChannel) Name() string { return "qstash" }

func (c *QStashChannel) Send(ctx context.Context, n Notice) error {
	if _, err := c.client.Publish(ctx, n, "escalation-"+n.ConversationID); err != nil {
		return fmt.Errorf("qstash publish: %w", err)
	}
	return nil
}

type streamPublisher interface {
	Subject(tenantID string) string
	Publish(ctx context.Context, subject string, data []byte) (uint64, error)
}

// NATSChannel publishes the notice on the tenant's escalation subject.
type NATSChannel struct {
	client streamPublisher
}

func NewNATSChannel(client streamPublisher) *NATSChannel {
	return &NATSChannel{client: client}
}

func (c *NATSChannel) Name() string { return "nats" }

func (c *NATSChannel) Send(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	if _, err := c.client.Publish(ctx, c.client.Subject(n.TenantID), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
