package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

type Repositories struct {
	Attempts ports.ProvisionLogRepository
	Outbox   ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Attempts: &provisionLogRepository{db: db},
		Outbox:   &outboxRepository{db: db},
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func mapAttempt(row provisionAttemptModel) ports.ProvisionAttempt {
	return ports.ProvisionAttempt{
		AttemptID:      row.AttemptID,
		Source:         row.Source,
		OrderID:        row.OrderID,
		Email:          row.Email,
		Outcome:        domain.ProvisioningOutcome(row.Outcome),
		Reason:         row.Reason,
		CredentialHash: row.CredentialHash,
		AttemptedAt:    row.AttemptedAt,
	}
}

func attemptModel(attempt ports.ProvisionAttempt) provisionAttemptModel {
	return provisionAttemptModel{
		AttemptID:      attempt.AttemptID,
		Source:         attempt.Source,
		OrderID:        attempt.OrderID,
		Email:          attempt.Email,
		Outcome:        string(attempt.Outcome),
		Reason:         attempt.Reason,
		CredentialHash: attempt.CredentialHash,
		AttemptedAt:    attempt.AttemptedAt,
	}
}
