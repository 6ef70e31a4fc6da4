package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

type provisionLogRepository struct {
	db *gorm.DB
}

// RecordWithOutboxTx writes the attempt and its event in one transaction
// so an audit row never exists without its event, nor the reverse.
func (r *provisionLogRepository) RecordWithOutboxTx(ctx context.Context, attempt ports.ProvisionAttempt, event ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := attemptModel(attempt)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("insert provision attempt: %w", err)
		}

		rec := provisioningOutboxModel{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      string(event.Payload),
			CreatedAt:    event.OccurredAt,
			FirstSeenAt:  event.OccurredAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("enqueue outbox event: %w", err)
		}
		return nil
	})
}

func (r *provisionLogRepository) Record(ctx context.Context, attempt ports.ProvisionAttempt) error {
	row := attemptModel(attempt)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert provision attempt: %w", err)
	}
	return nil
}

func (r *provisionLogRepository) ListByEmail(ctx context.Context, email string, limit int) ([]ports.ProvisionAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []provisionAttemptModel
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("attempted_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list provision attempts: %w", err)
	}

	result := make([]ports.ProvisionAttempt, 0, len(rows))
	for _, row := range rows {
		result = append(result, mapAttempt(row))
	}
	return result, nil
}
