package application

import (
	"context"
	"errors"

	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

// HandleOrderNotification runs one webhook notification through the
// ingress state machine: received -> inspected -> {provisioned | denied
// | errored}. A returned error means the sender should redeliver; every
// other outcome is acknowledged. Redelivery of the same order is safe
// because EnsureAccount is idempotent.
func (s *Service) HandleOrderNotification(ctx context.Context, n OrderNotification) (WebhookResult, error) {
	inspection, err := s.InspectOrder(ctx, n)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Order id did not resolve upstream: non-qualifying, not fatal.
			s.logger.InfoContext(ctx, "notification references unknown order",
				"operation", "handle_notification",
				"outcome", "denied",
				"order_id", n.OrderID,
			)
			s.recordAttempt(ctx, ports.ProvisionAttempt{
				Source:  SourceWebhook,
				OrderID: n.OrderID,
				Outcome: domain.OutcomeDenied,
				Reason:  "order not found",
			}, nil)
			return WebhookResult{
				State:   domain.NotificationDenied,
				Outcome: domain.OutcomeDenied,
				OrderID: n.OrderID,
				Reason:  "order not found",
			}, nil
		case errors.Is(err, domain.ErrInvalidInput):
			return WebhookResult{State: domain.NotificationReceived, OrderID: n.OrderID}, err
		default:
			// Order backend unreachable before inspection completed; the
			// sender's redelivery is the retry mechanism.
			s.logger.ErrorContext(ctx, "order inspection failed",
				"operation", "handle_notification",
				"outcome", "errored",
				"order_id", n.OrderID,
				"error", err,
			)
			return WebhookResult{State: domain.NotificationErrored, OrderID: n.OrderID}, err
		}
	}

	if !inspection.Qualifies {
		s.logger.InfoContext(ctx, "order does not qualify",
			"operation", "handle_notification",
			"outcome", "denied",
			"order_id", inspection.Order.ID,
			"email", domain.RedactEmail(inspection.Email),
			"status", string(inspection.Order.Status),
		)
		s.recordAttempt(ctx, ports.ProvisionAttempt{
			Source:  SourceWebhook,
			OrderID: inspection.Order.ID,
			Email:   inspection.Email,
			Outcome: domain.OutcomeDenied,
			Reason:  "no qualifying product or status",
		}, s.outboxEvent(EventAccessDenied, inspection.Email, inspection.Order.ID, domain.OutcomeDenied))
		return WebhookResult{
			State:   domain.NotificationDenied,
			Outcome: domain.OutcomeDenied,
			OrderID: inspection.Order.ID,
			Email:   inspection.Email,
			Reason:  "no qualifying product or status",
		}, nil
	}

	ensured, err := s.EnsureAccount(ctx, inspection.Email, s.metadataFromOrder(inspection.Order))
	if err != nil {
		s.logger.ErrorContext(ctx, "provisioning failed",
			"operation", "handle_notification",
			"outcome", "errored",
			"order_id", inspection.Order.ID,
			"email", domain.RedactEmail(inspection.Email),
			"error", err,
		)
		s.recordAttempt(ctx, ports.ProvisionAttempt{
			Source:  SourceWebhook,
			OrderID: inspection.Order.ID,
			Email:   inspection.Email,
			Outcome: domain.OutcomeError,
			Reason:  err.Error(),
		}, nil)
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return WebhookResult{State: domain.NotificationErrored, OrderID: inspection.Order.ID, Email: inspection.Email}, err
		}
		// Inspection completed; a non-retryable backend rejection is
		// acknowledged so the sender does not redeliver a payload that
		// cannot succeed.
		return WebhookResult{
			State:   domain.NotificationErrored,
			Outcome: domain.OutcomeError,
			OrderID: inspection.Order.ID,
			Email:   inspection.Email,
			Reason:  "identity creation rejected",
		}, nil
	}

	s.recordAttempt(ctx, ports.ProvisionAttempt{
		Source:         SourceWebhook,
		OrderID:        inspection.Order.ID,
		Email:          inspection.Email,
		Outcome:        ensured.Outcome,
		CredentialHash: s.hashCredential(ctx, ensured.Credential),
	}, s.outboxEvent(EventAccessProvisioned, inspection.Email, inspection.Order.ID, ensured.Outcome))

	s.logger.InfoContext(ctx, "notification provisioned",
		"operation", "handle_notification",
		"outcome", string(ensured.Outcome),
		"order_id", inspection.Order.ID,
		"email", domain.RedactEmail(inspection.Email),
	)

	// The credential is deliberately dropped here: the webhook sender has
	// no business receiving it.
	return WebhookResult{
		State:   domain.NotificationProvisioned,
		Outcome: ensured.Outcome,
		OrderID: inspection.Order.ID,
		Email:   inspection.Email,
	}, nil
}
