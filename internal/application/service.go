package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

// Service implements the order-to-access provisioning pipeline. Handlers
// are request-scoped and stateless; the only shared mutable resource is
// the external identity backend, and correctness under concurrent
// triggers is delegated to its create-then-detect-conflict behavior.
type Service struct {
	cfg        Config
	logger     *slog.Logger
	store      ports.StoreClient
	identity   ports.IdentityClient
	profiles   ports.ProfileStore
	attempts   ports.ProvisionLogRepository
	rateLimits ports.RateLimitStore
	hasher     ports.CredentialHasher
	nowFn      func() time.Time
}

type Dependencies struct {
	Config     Config
	Logger     *slog.Logger
	Store      ports.StoreClient
	Identity   ports.IdentityClient
	Profiles   ports.ProfileStore
	Attempts   ports.ProvisionLogRepository
	RateLimits ports.RateLimitStore
	Hasher     ports.CredentialHasher
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        deps.Config,
		logger:     logger.With("module", "application", "layer", "service"),
		store:      deps.Store,
		identity:   deps.Identity,
		profiles:   deps.Profiles,
		attempts:   deps.Attempts,
		rateLimits: deps.RateLimits,
		hasher:     deps.Hasher,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

// recordAttempt writes one audit row, pairing it with an outbox event in
// the same transaction when downstream consumers care about the outcome.
// Audit failures are logged, never propagated into the pipeline result.
func (s *Service) recordAttempt(ctx context.Context, attempt ports.ProvisionAttempt, event *ports.OutboxEvent) {
	if s.attempts == nil {
		return
	}
	attempt.AttemptID = uuid.New()
	attempt.AttemptedAt = s.nowFn()

	var err error
	if event != nil {
		err = s.attempts.RecordWithOutboxTx(ctx, attempt, *event)
	} else {
		err = s.attempts.Record(ctx, attempt)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "audit record failed",
			"operation", "record_attempt",
			"outcome", "failure",
			"source", attempt.Source,
			"order_id", attempt.OrderID,
			"email", domain.RedactEmail(attempt.Email),
			"error", err,
		)
	}
}

// ListAttempts returns the audit trail for an email, newest first. Used
// by support tooling on the internal surface.
func (s *Service) ListAttempts(ctx context.Context, email string, limit int) ([]ports.ProvisionAttempt, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.ListByEmail(ctx, normalized, limit)
}

func (s *Service) outboxEvent(eventType, email, orderID string, outcome domain.ProvisioningOutcome) *ports.OutboxEvent {
	now := s.nowFn()
	payload := fmt.Sprintf(
		`{"email":%q,"order_id":%q,"outcome":%q,"occurred_at":%q}`,
		email, orderID, outcome, now.Format(time.RFC3339),
	)
	return &ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: email,
		Payload:      []byte(payload),
		OccurredAt:   now,
	}
}
