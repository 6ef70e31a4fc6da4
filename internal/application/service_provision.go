package application

import (
	"context"
	"errors"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

// EnsureAccount guarantees exactly one identity record for email. It is
// safe to invoke concurrently and repeatedly: existence is checked
// first, and a creation that loses a race surfaces as already-existed
// via the backend's conflict report. The plaintext credential is
// returned only on creation and is never persisted by this service.
func (s *Service) EnsureAccount(ctx context.Context, email string, meta domain.IdentityMetadata) (EnsureResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return EnsureResult{Outcome: domain.OutcomeError}, err
	}

	exists, err := s.identity.IdentityExists(ctx, normalized)
	if err != nil {
		return EnsureResult{Outcome: domain.OutcomeError}, err
	}
	if exists {
		return EnsureResult{Outcome: domain.OutcomeAlreadyExists}, nil
	}

	credential, err := domain.GenerateCredential()
	if err != nil {
		return EnsureResult{Outcome: domain.OutcomeError}, err
	}

	if meta.Provenance == "" {
		meta.Provenance = domain.ProvenanceTag
	}
	if meta.ProvisionedAt.IsZero() {
		meta.ProvisionedAt = s.nowFn()
	}

	if err := s.identity.CreateIdentity(ctx, normalized, credential, meta); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race to a concurrent qualifying trigger. The record
			// exists, which is all the caller needs.
			s.logger.InfoContext(ctx, "identity creation raced, treating as existing",
				"operation", "ensure_account",
				"outcome", "already-existed",
				"email", domain.RedactEmail(normalized),
				"order_id", meta.OrderID,
			)
			return EnsureResult{Outcome: domain.OutcomeAlreadyExists}, nil
		}
		return EnsureResult{Outcome: domain.OutcomeError}, err
	}

	s.logger.InfoContext(ctx, "identity provisioned",
		"operation", "ensure_account",
		"outcome", "created",
		"email", domain.RedactEmail(normalized),
		"order_id", meta.OrderID,
	)

	// Best-effort mirror into the secondary profile store. Detached from
	// the request lifetime; failures never block provisioning.
	if s.profiles != nil {
		go s.syncProfile(context.WithoutCancel(ctx), normalized, meta.FirstName, meta.LastName)
	}

	return EnsureResult{Outcome: domain.OutcomeCreated, Credential: credential}, nil
}

func (s *Service) syncProfile(ctx context.Context, email, firstName, lastName string) {
	if err := s.profiles.UpsertProfile(ctx, email, firstName, lastName); err != nil {
		s.logger.WarnContext(ctx, "profile sync failed",
			"operation", "sync_profile",
			"outcome", "failure",
			"email", domain.RedactEmail(email),
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "profile synced",
		"operation", "sync_profile",
		"outcome", "success",
		"email", domain.RedactEmail(email),
	)
}

// metadataFromOrder builds provisioning metadata from the qualifying
// order's billing block.
func (s *Service) metadataFromOrder(order domain.Order) domain.IdentityMetadata {
	return domain.IdentityMetadata{
		Provenance:    domain.ProvenanceTag,
		OrderID:       order.ID,
		ProvisionedAt: s.nowFn(),
		FirstName:     order.Billing.FirstName,
		LastName:      order.Billing.LastName,
		Phone:         order.Billing.Phone,
		Company:       order.Billing.Company,
	}
}

// hashCredential produces the audit-log hash for an issued credential.
// An empty string is stored when hashing fails; the attempt row itself
// still lands.
func (s *Service) hashCredential(ctx context.Context, credential string) string {
	if s.hasher == nil || credential == "" {
		return ""
	}
	hash, err := s.hasher.Hash(credential)
	if err != nil {
		s.logger.WarnContext(ctx, "credential hash failed",
			"operation", "hash_credential",
			"outcome", "failure",
			"error", err,
		)
		return ""
	}
	return hash
}
