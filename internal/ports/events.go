package ports

import "context"

// EventPublisher delivers provisioning events claimed from the outbox to
// the broker (or a logging sink when no broker is configured).
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
