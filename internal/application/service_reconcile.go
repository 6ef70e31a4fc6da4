package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

// ReconcileLogin is the synchronous fallback invoked after a primary
// credential check has already failed. Access is re-verified against the
// order backend; when a qualifying purchase exists but no identity does,
// the account is provisioned on the spot and the fresh credential is
// handed back to the caller for out-of-band delivery.
func (s *Service) ReconcileLogin(ctx context.Context, email, callerIP string) (ReconcileResult, error) {
	return s.verifyAndProvision(ctx, email, callerIP, SourceLoginFallback)
}

// Provision is the manual verify-and-provision entry point, identical to
// the login fallback minus the failed-login framing.
func (s *Service) Provision(ctx context.Context, email, callerIP string) (ReconcileResult, error) {
	return s.verifyAndProvision(ctx, email, callerIP, SourceManual)
}

func (s *Service) verifyAndProvision(ctx context.Context, email, callerIP, source string) (ReconcileResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return ReconcileResult{}, err
	}

	if err := s.checkRateLimit(ctx, normalized, callerIP); err != nil {
		return ReconcileResult{}, err
	}

	access, err := s.HasAccess(ctx, normalized)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !access.HasAccess {
		s.logger.InfoContext(ctx, "fallback denied, no qualifying purchase",
			"operation", "reconcile_login",
			"outcome", "denied",
			"source", source,
			"email", domain.RedactEmail(normalized),
		)
		s.recordAttempt(ctx, ports.ProvisionAttempt{
			Source:  source,
			Email:   normalized,
			Outcome: domain.OutcomeDenied,
			Reason:  ReasonNoQualifyingPurchase,
		}, s.outboxEvent(EventAccessDenied, normalized, "", domain.OutcomeDenied))
		return ReconcileResult{GrantedNow: false, Reason: ReasonNoQualifyingPurchase}, nil
	}

	order, err := s.qualifyingOrder(ctx, normalized)
	if err != nil {
		// HasAccess just confirmed a qualifying order; losing it between
		// calls means the upstream flapped.
		if errors.Is(err, domain.ErrNotFound) {
			return ReconcileResult{}, fmt.Errorf("%w: qualifying order vanished between checks", domain.ErrUpstreamUnavailable)
		}
		return ReconcileResult{}, err
	}

	ensured, err := s.EnsureAccount(ctx, normalized, s.metadataFromOrder(order))
	if err != nil {
		s.recordAttempt(ctx, ports.ProvisionAttempt{
			Source:  source,
			OrderID: order.ID,
			Email:   normalized,
			Outcome: domain.OutcomeError,
			Reason:  err.Error(),
		}, nil)
		return ReconcileResult{}, err
	}

	s.recordAttempt(ctx, ports.ProvisionAttempt{
		Source:         source,
		OrderID:        order.ID,
		Email:          normalized,
		Outcome:        ensured.Outcome,
		CredentialHash: s.hashCredential(ctx, ensured.Credential),
	}, s.outboxEvent(EventAccessProvisioned, normalized, order.ID, ensured.Outcome))

	if ensured.Outcome == domain.OutcomeCreated {
		s.logger.InfoContext(ctx, "fallback provisioned account",
			"operation", "reconcile_login",
			"outcome", "created",
			"source", source,
			"order_id", order.ID,
			"email", domain.RedactEmail(normalized),
		)
		return ReconcileResult{
			GrantedNow: true,
			Reason:     ReasonProvisioned,
			Credential: ensured.Credential,
		}, nil
	}

	// Account was already there, so the original login failure was a
	// genuine credential mismatch rather than a provisioning gap.
	s.logger.InfoContext(ctx, "fallback found existing account",
		"operation", "reconcile_login",
		"outcome", "already-existed",
		"source", source,
		"order_id", order.ID,
		"email", domain.RedactEmail(normalized),
	)
	return ReconcileResult{GrantedNow: false, Reason: ReasonAccountExists}, nil
}

func (s *Service) checkRateLimit(ctx context.Context, email, callerIP string) error {
	if s.rateLimits == nil || s.cfg.FallbackRateLimitThreshold <= 0 {
		return nil
	}
	keys := []string{"fallback:email:" + email}
	if callerIP != "" {
		keys = append(keys, "fallback:ip:"+callerIP)
	}
	for _, key := range keys {
		count, err := s.rateLimits.Increment(ctx, key, s.cfg.FallbackRateLimitWindow)
		if err != nil {
			// A broken limiter must not take the login path down with it.
			s.logger.WarnContext(ctx, "rate limit store unavailable",
				"operation", "check_rate_limit",
				"outcome", "failure",
				"error", err,
			)
			return nil
		}
		if count > int64(s.cfg.FallbackRateLimitThreshold) {
			return domain.ErrRateLimited
		}
	}
	return nil
}
