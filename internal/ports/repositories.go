package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

// ProvisionAttempt is one audited pass through the pipeline: a webhook
// notification, a login fallback, or a manual provision call.
type ProvisionAttempt struct {
	AttemptID uuid.UUID
	Source    string
	OrderID   string
	Email     string
	Outcome   domain.ProvisioningOutcome
	Reason    string
	// CredentialHash holds a bcrypt hash of the issued credential when the
	// outcome was created, so support can verify an issued credential
	// without the plaintext ever being stored.
	CredentialHash string
	AttemptedAt    time.Time
}

// ProvisionLogRepository persists the audit trail. The transactional
// record method exists to enforce attempt+outbox consistency.
type ProvisionLogRepository interface {
	RecordWithOutboxTx(ctx context.Context, attempt ProvisionAttempt, event OutboxEvent) error
	Record(ctx context.Context, attempt ProvisionAttempt) error
	ListByEmail(ctx context.Context, email string, limit int) ([]ProvisionAttempt, error)
}

// OutboxEvent is the write-side event payload prior to storage.
// It is adapter-neutral to keep application code independent of broker
// specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error
// metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for provisioning
// events without leaking DB details into the worker.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
