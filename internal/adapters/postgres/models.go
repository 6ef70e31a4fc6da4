package postgres

import (
	"time"

	"github.com/google/uuid"
)

type provisionAttemptModel struct {
	AttemptID      uuid.UUID `gorm:"column:attempt_id;type:uuid;primaryKey"`
	Source         string    `gorm:"column:source"`
	OrderID        string    `gorm:"column:order_id"`
	Email          string    `gorm:"column:email"`
	Outcome        string    `gorm:"column:outcome"`
	Reason         string    `gorm:"column:reason"`
	CredentialHash string    `gorm:"column:credential_hash"`
	AttemptedAt    time.Time `gorm:"column:attempted_at"`
}

func (provisionAttemptModel) TableName() string { return "provision_attempts" }

type provisioningOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (provisioningOutboxModel) TableName() string { return "provisioning_outbox" }
